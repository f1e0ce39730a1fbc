package adminclient

type configGetter interface {
	GetAdminClient() Config
}

type Config struct {
	BaseUrl string `yaml:"baseUrl"`
}
