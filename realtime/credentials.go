package realtime

// CredentialSource hands out the admin key and the user access token.
// An empty string means the credential is absent. The SDK never writes to it.
type CredentialSource interface {
	AdminKey() string
	AccessToken() string
}

// StaticCredentials is a fixed CredentialSource.
type StaticCredentials struct {
	Admin string
	Token string
}

func (s StaticCredentials) AdminKey() string    { return s.Admin }
func (s StaticCredentials) AccessToken() string { return s.Token }
