package config

import (
	"flag"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort  int    `yaml:"api_port" env:"SERVER_PORT" env-default:"8080"`
	ApiHost  string `yaml:"api_host" env:"SERVER_HOST" env-default:"localhost"`
	Postgres `yaml:"postgres"`
	Media    `yaml:"media"`
	Cors     `yaml:"cors"`
}

type Postgres struct {
	Host string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User string `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Pass string `yaml:"pass" env:"POSTGRES_PASS" env-default:"password"`
	Db   string `yaml:"db" env:"POSTGRES_DB" env-default:"properties_db"`
}

type Media struct {
	UploadDir    string `yaml:"upload_dir" env:"MEDIA_UPLOAD_DIR" env-default:"uploads"`
	RewardTokens int64  `yaml:"reward_tokens" env:"MEDIA_REWARD_TOKENS" env-default:"100"`
	// MaxUploadMB caps how much of a multipart body is held in memory.
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"MEDIA_MAX_UPLOAD_MB" env-default:"500"`
}

type Cors struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:8080"`
}

func MustLoad() *Config {
	path := fetchConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
