package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // billing timezone must resolve on slim images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PortalSessionDelta        time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GatewayConfig struct {
		BaseURL      string
		APIKey       string
		WebhookToken string
		Timeout      time.Duration
	}

	BillingConfig struct {
		Currency    string
		PhoneRegion string
		Location    *time.Location
	}

	PortalConfig struct {
		MaxLoginAttempts int
		LoginWindow      time.Duration
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		DefaultFromEmail mail.Address
		FinanceEmail     mail.Address
		RollbarToken     string
		SendgridApiKey   string
		RedisURL         string
		FrontendURL      string

		Server   ServerConfig
		Database DatabaseConfig
		Gateway  GatewayConfig
		Billing  BillingConfig
		Portal   PortalConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// NewConfig reads the configuration from the environment.
// ENV selects the variables prefix (DEV by default) and the optional `config/.env.<env>` file to load first.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("app_name", "Ágape")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("secret_key", "dev-v8x$1o@k2!hq7n-z0^r3m(wp5c)a6e#j9s_lbu+yt4d&fgi")
	v.SetDefault("default_from_email", "Ágape <noreply@localhost>")
	v.SetDefault("finance_email", "Financeiro <financeiro@localhost>")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("frontend_url", "http://localhost:3000")

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debug_host", "0.0.0.0:4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 8*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("portal_session_delta", 30*time.Minute)
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_name", "agape")
	v.SetDefault("database_user", "agape")
	v.SetDefault("database_password", "agape")
	v.SetDefault("database_admin_user", "postgres")
	v.SetDefault("database_admin_password", "")
	v.SetDefault("database_disable_tls", true)

	v.SetDefault("gateway_base_url", "https://sandbox.asaas.com/api/v3")
	v.SetDefault("gateway_api_key", "")
	v.SetDefault("gateway_webhook_token", "")
	v.SetDefault("gateway_timeout", 15*time.Second)

	v.SetDefault("billing_currency", "BRL")
	v.SetDefault("billing_timezone", "America/Sao_Paulo")
	v.SetDefault("phone_region", "BR")

	v.SetDefault("portal_max_login_attempts", 5)
	v.SetDefault("portal_login_window", 15*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (default), TEST, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if root, ok := ProjectRoot(); ok {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	loc, err := time.LoadLocation(v.GetString("billing_timezone"))
	if err != nil {
		log.Fatalf("config.LoadLocation(%s): %v", v.GetString("billing_timezone"), err)
	}

	return &Config{
		AppName:          v.GetString("app_name"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		SecretKey:        v.GetString("secret_key"),
		DefaultFromEmail: parseAddress(v.GetString("default_from_email")),
		FinanceEmail:     parseAddress(v.GetString("finance_email")),
		RollbarToken:     v.GetString("rollbar_token"),
		SendgridApiKey:   v.GetString("sendgrid_api_key"),
		RedisURL:         v.GetString("redis_url"),
		FrontendURL:      strings.TrimRight(v.GetString("frontend_url"), "/"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			PortalSessionDelta:        v.GetDuration("portal_session_delta"),
			PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetInt("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			DisableTLS:    v.GetBool("database_disable_tls"),
		},
		Gateway: GatewayConfig{
			BaseURL:      strings.TrimRight(v.GetString("gateway_base_url"), "/"),
			APIKey:       v.GetString("gateway_api_key"),
			WebhookToken: v.GetString("gateway_webhook_token"),
			Timeout:      v.GetDuration("gateway_timeout"),
		},
		Billing: BillingConfig{
			Currency:    strings.ToUpper(v.GetString("billing_currency")),
			PhoneRegion: strings.ToUpper(v.GetString("phone_region")),
			Location:    loc,
		},
		Portal: PortalConfig{
			MaxLoginAttempts: v.GetInt("portal_max_login_attempts"),
			LoginWindow:      v.GetDuration("portal_login_window"),
		},
	}
}

func parseAddress(s string) mail.Address {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		log.Fatalf("config.mail.ParseAddress(%s): %v", s, err)
	}
	return *addr
}
