package adminconfig

type ConfigGetter interface {
	GetAdmin() Config
}

type Config struct {
	Addr string `yaml:"addr"`
}
