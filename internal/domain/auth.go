package domain

// Identity is the subject and authorization attributes signed into tokens.
type Identity struct {
	Subject         string
	Email           string
	Username        string
	IsAdmin         bool
	IsEmailVerified bool
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
