package store

type configSource interface {
	GetS3Store() Config
}

type Credentials struct {
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

type Config struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
	// Endpoint overrides the AWS endpoint for S3-compatible backends.
	Endpoint string `yaml:"endpoint"`
	// GoogleCompat re-signs requests for the GCS interoperability layer.
	GoogleCompat   bool        `yaml:"googleCompat"`
	ForcePathStyle bool        `yaml:"forcePathStyle"`
	Credentials    Credentials `yaml:"credentials"`
}
