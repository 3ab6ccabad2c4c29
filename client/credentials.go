// Package client provides an HTTP client for servers that issue short-lived
// access tokens backed by a refresh cookie. It wires an authlink.Session into
// an http.Client and adds GraphQL helpers for the login, logout and me
// operations.
package client

import (
	"context"
	"errors"
	"fmt"
)

// User is the account returned by the server
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// LoginResponse is the payload of the login mutation
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

const (
	loginMutation = `mutation Login($email: String!, $password: String!) {
  login(email: $email, password: $password) {
    accessToken
    user { id name email }
  }
}`

	logoutMutation = `mutation Logout {
  logout
}`

	registerMutation = `mutation Register($name: String!, $email: String!, $password: String!) {
  register(name: $name, email: $email, password: $password) { id name email }
}`

	meQuery = `query Me {
  me { id name email }
}`
)

// ErrNoAccessToken is returned by Login when the server answers without a token.
var ErrNoAccessToken = errors.New("login response has no access token")

// Login authenticates with email/password. The returned access token goes into
// the session; the refresh cookie set by the response goes into the jar.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		Login *LoginResponse `json:"login"`
	}
	err := c.Do(ctx, GraphQLRequest{
		OperationName: "Login",
		Query:         loginMutation,
		Variables:     map[string]any{"email": email, "password": password},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Login == nil || out.Login.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	c.session.SetAccessToken(out.Login.AccessToken)

	if err := c.saveJar(); err != nil {
		return nil, fmt.Errorf("failed to save cookies: %w", err)
	}
	return &out.Login.User, nil
}

// Logout asks the server to drop the refresh cookie and then clears the
// session. If the server call fails the session is left as is.
func (c *AuthClient) Logout(ctx context.Context) error {
	var out struct {
		Logout bool `json:"logout"`
	}
	if err := c.Do(ctx, GraphQLRequest{OperationName: "Logout", Query: logoutMutation}, &out); err != nil {
		return err
	}

	c.session.ClearSession()
	return c.saveJar()
}

// Register creates an account. It does not log in.
func (c *AuthClient) Register(ctx context.Context, name, email, password string) (*User, error) {
	var out struct {
		Register *User `json:"register"`
	}
	err := c.Do(ctx, GraphQLRequest{
		OperationName: "Register",
		Query:         registerMutation,
		Variables:     map[string]any{"name": name, "email": email, "password": password},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Register, nil
}

// Me returns the current user, or nil if the server does not know who we are.
func (c *AuthClient) Me(ctx context.Context) (*User, error) {
	var out struct {
		Me *User `json:"me"`
	}
	if err := c.Do(ctx, GraphQLRequest{OperationName: "Me", Query: meQuery}, &out); err != nil {
		return nil, err
	}
	return out.Me, nil
}
