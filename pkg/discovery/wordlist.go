package discovery

// DefaultWordlist holds the common subdomain labels tried by the brute-force
// method.
var DefaultWordlist = []string{
	// Web servers
	"www", "web", "www1", "www2", "www3",

	// Services
	"mail", "smtp", "pop", "imap", "webmail",
	"ftp", "sftp", "files",
	"vpn", "remote",
	"api", "apis", "rest", "graphql",
	"cdn", "static", "assets", "img", "images",
	"blog", "forum", "wiki", "docs", "help", "support",

	// Development & testing
	"dev", "development", "test", "testing", "qa",
	"stage", "staging", "uat", "preprod", "demo",
	"beta", "alpha", "preview",

	// Admin & management
	"admin", "administrator", "manage", "management",
	"portal", "dashboard", "console",

	// Infrastructure
	"ns", "ns1", "ns2", "dns", "mx", "mx1", "mx2",
	"db", "database", "sql",
	"cloud", "aws", "gcp",

	// Mobile & apps
	"m", "mobile", "app", "apps",

	// Business
	"shop", "store", "cart", "pay", "payment", "billing",
	"crm", "erp", "hr",

	// Media & content
	"video", "media", "stream", "news", "press",

	// Monitoring & security
	"status", "stats", "analytics", "metrics",
	"monitor", "logs", "logging",
	"secure", "ssl", "auth", "oauth", "sso",
	"proxy", "gateway",

	// Communication
	"chat", "im", "meet", "conference",
}
