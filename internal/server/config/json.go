package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "10m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	LogLevel         string `json:"log_level"`
	OTLPEndpoint     string `json:"otlp_endpoint"`

	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`

	VerificationCodeTTL    timex.Duration `json:"verification_code_ttl"`
	VerificationLinkTTL    timex.Duration `json:"verification_link_ttl"`
	SweepInterval          timex.Duration `json:"sweep_interval"`
	BaseURL                string         `json:"base_url"`
	ExposeVerificationCode bool           `json:"expose_verification_code"`

	MailFrom           string         `json:"mail_from"`
	SMTPHost           string         `json:"smtp_host"`
	SMTPPort           int            `json:"smtp_port"`
	SMTPUsername       string         `json:"smtp_username"`
	SMTPPassword       string         `json:"smtp_password"`
	MailQueueSize      int            `json:"mail_queue_size"`
	MailWorkers        int            `json:"mail_workers"`
	MailEnqueueTimeout timex.Duration `json:"mail_enqueue_timeout"`
	MailSendTimeout    timex.Duration `json:"mail_send_timeout"`

	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleRedirectURL  string `json:"google_redirect_url"`
	KakaoClientID      string `json:"kakao_client_id"`
	KakaoClientSecret  string `json:"kakao_client_secret"`
	KakaoRedirectURL   string `json:"kakao_redirect_url"`

	AdminUsername string `json:"admin_username"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`

	Argon2Memory      uint32 `json:"argon2_memory"`
	Argon2Iterations  uint32 `json:"argon2_iterations"`
	Argon2Parallelism uint8  `json:"argon2_parallelism"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		DatabaseDSN:                  c.DatabaseDSN,
		LogLevel:                     c.LogLevel,
		OTLPEndpoint:                 c.OTLPEndpoint,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		VerificationCodeTTL:          timex.Duration{Duration: c.VerificationCodeTTL},
		VerificationLinkTTL:          timex.Duration{Duration: c.VerificationLinkTTL},
		SweepInterval:                timex.Duration{Duration: c.SweepInterval},
		BaseURL:                      c.BaseURL,
		ExposeVerificationCode:       c.ExposeVerificationCode,
		MailFrom:                     c.MailFrom,
		SMTPHost:                     c.SMTPHost,
		SMTPPort:                     c.SMTPPort,
		SMTPUsername:                 c.SMTPUsername,
		SMTPPassword:                 c.SMTPPassword,
		MailQueueSize:                c.MailQueueSize,
		MailWorkers:                  c.MailWorkers,
		MailEnqueueTimeout:           timex.Duration{Duration: c.MailEnqueueTimeout},
		MailSendTimeout:              timex.Duration{Duration: c.MailSendTimeout},
		GoogleClientID:               c.GoogleClientID,
		GoogleClientSecret:           c.GoogleClientSecret,
		GoogleRedirectURL:            c.GoogleRedirectURL,
		KakaoClientID:                c.KakaoClientID,
		KakaoClientSecret:            c.KakaoClientSecret,
		KakaoRedirectURL:             c.KakaoRedirectURL,
		AdminUsername:                c.AdminUsername,
		AdminEmail:                   c.AdminEmail,
		AdminPassword:                c.AdminPassword,
		Argon2Memory:                 c.Argon2Memory,
		Argon2Iterations:             c.Argon2Iterations,
		Argon2Parallelism:            c.Argon2Parallelism,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDSN = j.DatabaseDSN
	c.LogLevel = j.LogLevel
	c.OTLPEndpoint = j.OTLPEndpoint
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.VerificationCodeTTL = j.VerificationCodeTTL.Duration
	c.VerificationLinkTTL = j.VerificationLinkTTL.Duration
	c.SweepInterval = j.SweepInterval.Duration
	c.BaseURL = j.BaseURL
	c.ExposeVerificationCode = j.ExposeVerificationCode
	c.MailFrom = j.MailFrom
	c.SMTPHost = j.SMTPHost
	c.SMTPPort = j.SMTPPort
	c.SMTPUsername = j.SMTPUsername
	c.SMTPPassword = j.SMTPPassword
	c.MailQueueSize = j.MailQueueSize
	c.MailWorkers = j.MailWorkers
	c.MailEnqueueTimeout = j.MailEnqueueTimeout.Duration
	c.MailSendTimeout = j.MailSendTimeout.Duration
	c.GoogleClientID = j.GoogleClientID
	c.GoogleClientSecret = j.GoogleClientSecret
	c.GoogleRedirectURL = j.GoogleRedirectURL
	c.KakaoClientID = j.KakaoClientID
	c.KakaoClientSecret = j.KakaoClientSecret
	c.KakaoRedirectURL = j.KakaoRedirectURL
	c.AdminUsername = j.AdminUsername
	c.AdminEmail = j.AdminEmail
	c.AdminPassword = j.AdminPassword
	c.Argon2Memory = j.Argon2Memory
	c.Argon2Iterations = j.Argon2Iterations
	c.Argon2Parallelism = j.Argon2Parallelism
}

// parseJson overlays the file named by -c/-config onto config. Keys missing
// from the file keep their current values. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
