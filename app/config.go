package huddle

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	// Port is the port number to listen on. The default is 8080.
	Port int `validate:"required,port" default:"8080"`
	// Hostname is the hostname to listen on. The default is 0.0.0.0.
	Hostname string `validate:"required" default:"0.0.0.0"`
	Auth     struct {
		// Secret is the secret key used to sign JWT tokens.
		// It must be a base64 encoded string. The default is a random
		// 32 byte string.
		Secret Base64Encoded `validate:"required"`
		// TokenExp is the lifetime of issued session tokens.
		TokenExp time.Duration
	}
	SQLite struct {
		// File is the path to the SQLite database file.
		File string `validate:"required"`
		// Migrations is the path to the directory holding migration files.
		Migrations string `validate:"required"`
	}
	History struct {
		// Backend selects the history store: memory or sqlite.
		Backend string `validate:"required,oneof=memory sqlite"`
		// Limit is the maximum number of retained messages.
		Limit int
	}
	Typing struct {
		// TTL is how long a typing indicator lives without a refresh.
		TTL time.Duration
		// SweepInterval is the cadence of the typing expiry sweep.
		SweepInterval time.Duration
	}
	Upload struct {
		// Dir is the directory uploaded files are stored in.
		Dir string `validate:"required"`
		// MaxBytes is the upload size limit.
		MaxBytes int64
	}
	// Users are the accounts seeded into the user store at startup.
	Users []SeedUser
	// AllowedOrigins is a list of origins that are allowed to connect to the
	// server. The default is ["*"].
	AllowedOrigins []string
	valid          bool
}

type SeedUser struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type Base64Encoded []byte

func (b *Base64Encoded) UnmarshalText(text []byte) error {
	dec, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("base64 decode: %w", err)
	}
	*b = dec
	return nil
}

// LoadConfig loads the configuration from an optional config.yaml, a local
// .env file and environment variables. Invalid values are not rejected here;
// they are caught by Validate.
func LoadConfig() (*Config, error) {
	config := &Config{}

	// populate the environment from a local .env, if there is one
	godotenv.Load()

	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("port", 8080)
	viper.SetDefault("hostname", "0.0.0.0")

	// generate a random secret key
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	viper.SetDefault("auth.secret", base64.StdEncoding.EncodeToString(secret))
	viper.SetDefault("auth.tokenexp", "24h")

	viper.SetDefault("sqlite.file", "./huddle.db")
	viper.SetDefault("sqlite.migrations", "./migrations")

	viper.SetDefault("history.backend", "memory")
	viper.SetDefault("history.limit", 100)

	viper.SetDefault("typing.ttl", "3s")
	viper.SetDefault("typing.sweepinterval", "1s")

	viper.SetDefault("upload.dir", "./uploads")
	viper.SetDefault("upload.maxbytes", 5<<20)

	viper.SetDefault("allowedorigins", []string{"*"})

	// the demo accounts
	viper.SetDefault("users", []map[string]interface{}{
		{"username": "lev", "password": "lev", "name": "Lev"},
		{"username": "cin", "password": "cin", "name": "Cin"},
	})

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(&config,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(",")),
		),
	); err != nil {
		// defer error to validation step
		return config, nil
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.valid {
		return nil
	}
	err := validate.Struct(c)
	if err != nil {
		return err
	}
	c.valid = true
	return nil
}

func FormatValidationErrors(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ""
	}
	trans, _ := uniTrans.GetTranslator("en")
	translated := errs.Translate(trans)

	var sb strings.Builder
	for _, v := range translated {
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}
