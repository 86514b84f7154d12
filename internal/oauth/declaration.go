package oauth

const FlowClientCredentials = "client_credentials"

// Declaration defines the OAuth contract a gateway client provides.
type Declaration struct {
	Provider string
	Flow     string
	TokenURL string
	Scope    string
}
