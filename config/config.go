package config

import "time"

type Config struct {
	Web struct {
		Address         string        `conf:"default:0.0.0.0:3000"`
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:40s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}

	Cors struct {
		Origin string
	}

	Backend struct {
		URL     string        `conf:"required"`
		Timeout time.Duration `conf:"default:30s"`
	}

	Session struct {
		Lifetime time.Duration `conf:"default:24h"`
	}

	Oauth struct {
		DiscoveryTimeout time.Duration `conf:"default:30s"`
		LoginRedirectURL string        `conf:"default:/"`
		SignInPath       string        `conf:"default:/auth/login/google"`
		Google           Oidc
	}

	Checkout struct {
		CancelPath string `conf:"default:/checkout/cancel"`
	}

	Rate struct {
		Burst    int           `conf:"default:5"`
		Interval time.Duration `conf:"default:1s"`
		Expiry   time.Duration `conf:"default:10m"`
	}
}

type Oidc struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}
