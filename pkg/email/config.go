package email

// Config holds email delivery settings. The Postmark tokens may be empty in
// development, where DevSender is used instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"alerts@wardwatch.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@wardwatch.local"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
}
