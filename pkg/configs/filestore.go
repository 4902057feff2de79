package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// FileStoreType 原始文件存储后端类型.
type FileStoreType string

const (
	FileStoreLocal FileStoreType = "local"
	FileStoreS3    FileStoreType = "s3"
)

const (
	DefaultFileStoreType     = FileStoreLocal   // 默认使用本地目录
	DefaultFileStoreRoot     = "uploads"        // 默认本地存储根目录
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3BucketName      = "dataviz"        // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
	DefaultS3Prefix          = "uploads/"       // 默认对象前缀
)

// FileStoreConfig 原始上传文件的存储配置.
type FileStoreConfig struct {
	Type  FileStoreType        `mapstructure:"type"  rule:"oneof=local s3"`
	Local LocalFileStoreConfig `mapstructure:"local"`
	S3    S3Config             `mapstructure:"s3"`
}

// LocalFileStoreConfig 本地目录存储配置.
type LocalFileStoreConfig struct {
	Root string `mapstructure:"root" rule:"required"`
}

// S3Config MinIO S3存储配置.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
}

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置文件存储配置的默认值.
func (c *FileStoreConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("filestore.type", DefaultFileStoreType)
	v.SetDefault("filestore.local.root", DefaultFileStoreRoot)

	v.SetDefault("filestore.s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("filestore.s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("filestore.s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("filestore.s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("filestore.s3.bucket_name", DefaultS3BucketName)
	v.SetDefault("filestore.s3.region", DefaultS3Region)
	v.SetDefault("filestore.s3.prefix", DefaultS3Prefix)
}
