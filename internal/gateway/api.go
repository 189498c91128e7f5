package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kgcollins/parishport/internal/model"
)

// The proxy's endpoint map predates password reset, so those two paths are
// fixed siblings of the login endpoint.
const (
	forgotPasswordPath = "/api/household/forgot-password"
	resetPasswordPath  = "/api/household/reset-password"
)

// RegisterPayload is the registration request body. The field names follow
// the single standardized schema; terms_accepted carries 1 for accepted.
type RegisterPayload struct {
	HouseholdName string `json:"household_name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Phone         string `json:"phone,omitempty"`
	TermsAccepted int    `json:"terms_accepted"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the successful login/registration payload: the new session
// token plus the household it authenticates.
type AuthResult struct {
	Token     string          `json:"token"`
	Household model.Household `json:"household"`
}

// HouseholdUpdate is the full-replacement household update body.
type HouseholdUpdate struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// MemberPayload is the member create/update body. Sacrament detail fields are
// always sent, so cleared values overwrite stale remote state.
type MemberPayload struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Occupation string `json:"occupation"`
	Skills     string `json:"skills"`

	Baptised      bool   `json:"baptised"`
	BaptismDate   string `json:"baptism_date"`
	BaptismParish string `json:"baptism_parish"`

	FirstCommunion       bool   `json:"first_communion"`
	FirstCommunionDate   string `json:"first_communion_date"`
	FirstCommunionParish string `json:"first_communion_parish"`

	Confirmed          bool   `json:"confirmed"`
	ConfirmationDate   string `json:"confirmation_date"`
	ConfirmationParish string `json:"confirmation_parish"`
}

type resetPayload struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type forgotPayload struct {
	Email    string `json:"email"`
	ResetURL string `json:"reset_url"`
}

func (c *Client) Register(ctx context.Context, p RegisterPayload) (*AuthResult, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodPost, cfg.Endpoints.Register, p)
	if err != nil {
		return nil, err
	}
	return decodeAuthResult(res.payload)
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodPost, cfg.Endpoints.Login, creds)
	if err != nil {
		return nil, err
	}
	return decodeAuthResult(res.payload)
}

func decodeAuthResult(payload json.RawMessage) (*AuthResult, error) {
	var ar AuthResult
	if err := json.Unmarshal(payload, &ar); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if ar.Token == "" {
		return nil, fmt.Errorf("auth response missing session token")
	}
	return &ar, nil
}

func (c *Client) Logout(ctx context.Context) error {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, cfg.Endpoints.Logout, nil)
	return err
}

// ForgotPassword asks the API to mail a reset link. Returns the API's
// confirmation message.
func (c *Client) ForgotPassword(ctx context.Context, email, resetURL string) (string, error) {
	res, err := c.do(ctx, http.MethodPost, forgotPasswordPath, forgotPayload{Email: email, ResetURL: resetURL})
	if err != nil {
		return "", err
	}
	if res.message != "" {
		return res.message, nil
	}
	return "Password reset link sent to your email.", nil
}

// ResetPassword completes a password reset with the emailed token. A
// successful reset does not log the household in.
func (c *Client) ResetPassword(ctx context.Context, token, email, password, confirmation string) (string, error) {
	p := resetPayload{
		Token:                token,
		Email:                email,
		Password:             password,
		PasswordConfirmation: confirmation,
	}
	res, err := c.do(ctx, http.MethodPost, resetPasswordPath, p)
	if err != nil {
		return "", err
	}
	if res.message != "" {
		return res.message, nil
	}
	return "Password reset successfully.", nil
}

func (c *Client) Household(ctx context.Context) (*model.Household, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodGet, cfg.Endpoints.Household, nil)
	if err != nil {
		return nil, err
	}
	var h model.Household
	if err := json.Unmarshal(unwrapKey(res.payload, "household"), &h); err != nil {
		return nil, fmt.Errorf("decode household: %w", err)
	}
	return &h, nil
}

func (c *Client) UpdateHousehold(ctx context.Context, u HouseholdUpdate) (*model.Household, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodPut, cfg.Endpoints.Household, u)
	if err != nil {
		return nil, err
	}
	var h model.Household
	if err := json.Unmarshal(unwrapKey(res.payload, "household"), &h); err != nil {
		return nil, fmt.Errorf("decode updated household: %w", err)
	}
	return &h, nil
}

func (c *Client) Members(ctx context.Context) ([]model.Member, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodGet, cfg.Endpoints.Members, nil)
	if err != nil {
		return nil, err
	}
	var members []model.Member
	if err := json.Unmarshal(unwrapKey(res.payload, "members"), &members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return members, nil
}

func (c *Client) CreateMember(ctx context.Context, p MemberPayload) (*model.Member, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodPost, cfg.Endpoints.Members, p)
	if err != nil {
		return nil, err
	}
	return decodeMember(res.payload)
}

func (c *Client) UpdateMember(ctx context.Context, id int64, p MemberPayload) (*model.Member, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", cfg.Endpoints.Member, id), p)
	if err != nil {
		return nil, err
	}
	return decodeMember(res.payload)
}

func (c *Client) DeleteMember(ctx context.Context, id int64) error {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", cfg.Endpoints.Member, id), nil)
	return err
}

func decodeMember(payload json.RawMessage) (*model.Member, error) {
	var m model.Member
	if err := json.Unmarshal(unwrapKey(payload, "member"), &m); err != nil {
		return nil, fmt.Errorf("decode member: %w", err)
	}
	if m.ID == 0 {
		return nil, fmt.Errorf("member response missing id")
	}
	return &m, nil
}
