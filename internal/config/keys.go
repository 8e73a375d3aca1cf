package config

const (
	KeyServerPort        = "server.port"
	KeyServerTLSEnabled  = "server.tls.enabled"
	KeyServerTLSCertFile = "server.tls.cert_file"
	KeyServerTLSKeyFile  = "server.tls.key_file"
	KeyServerSecretKey   = "server.secret_key"
	KeySaltFile          = "server.salt_file"

	KeyDBKind = "db.kind"
	KeyDBFile = "db.file"
	KeyDBURL  = "db.url"

	KeyTokenLifetime      = "security.token.lifetime"
	KeyTokenRefreshWindow = "security.token.refresh_window"
	KeyTokenIssuer        = "security.token.issuer"

	KeyAdminToken = "admin.token"
	KeyDebugLog   = "debug_log"

	DefaultPort = 9000
)
