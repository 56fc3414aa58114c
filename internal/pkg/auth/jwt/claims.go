package jwt

import "github.com/golang-jwt/jwt"

// Claims defines the JWT payload accepted by the chat server.
//
// Identity tokens are issued by an external auth service, and two payload
// shapes are in circulation: older tokens carry the user id at the top level
// ("id"), newer ones nest it under "data.user.id". Both are accepted.
type Claims struct {
	// StandardClaims embeds the JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer), used for token validity checks.
	jwt.StandardClaims

	// ID is the top-level user identifier (older token shape).
	ID string `json:"id,omitempty"`

	// Data holds the nested user identifier (newer token shape).
	Data *ClaimsData `json:"data,omitempty"`
}

// ClaimsData is the envelope for the nested token shape.
type ClaimsData struct {
	User *ClaimsUser `json:"user,omitempty"`
}

// ClaimsUser carries the user identifier in the nested token shape.
type ClaimsUser struct {
	ID string `json:"id"`
}

// UserID resolves the user identity from whichever payload shape is present.
// It returns an empty string when neither shape carries an id.
func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}

	if c.Data != nil && c.Data.User != nil {
		return c.Data.User.ID
	}

	return ""
}
