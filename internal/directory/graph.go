package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/entrajuda/emergencia/internal/auth"
	"github.com/entrajuda/emergencia/internal/config"
)

const defaultAPIBase = "https://graph.microsoft.com/v1.0"

// GraphClient implementa Service contra a API Microsoft Graph usando
// client credentials.
type GraphClient struct {
	httpClient    *http.Client
	cfg           config.DirectoryConfig
	normalizer    *auth.Normalizer
	baseURL       string
	adminRole     string
	volunteerRole string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewGraphClient cria o cliente do diretório. adminRole e volunteerRole
// são os nomes com que os papéis geridos aparecem no resto da aplicação.
func NewGraphClient(cfg config.DirectoryConfig, normalizer *auth.Normalizer, adminRole, volunteerRole string) (*GraphClient, error) {
	if !cfg.IsComplete() {
		return nil, ErrNaoConfigurado
	}

	base := strings.TrimSpace(cfg.APIBase)
	if base == "" {
		base = defaultAPIBase
	}

	return &GraphClient{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		cfg:           cfg,
		normalizer:    normalizer,
		baseURL:       strings.TrimRight(base, "/"),
		adminRole:     adminRole,
		volunteerRole: volunteerRole,
	}, nil
}

type graphUser struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
}

type roleAssignment struct {
	ID        string `json:"id"`
	AppRoleID string `json:"appRoleId"`
}

// ListUsers devolve os utilizadores do tenant com papéis geridos atribuídos.
func (c *GraphClient) ListUsers(ctx context.Context) ([]User, error) {
	var payload struct {
		Value []graphUser `json:"value"`
	}
	if err := c.get(ctx, "/users?$select=id,userPrincipalName,displayName,mail&$top=999", &payload); err != nil {
		return nil, err
	}

	var users []User
	for _, gu := range payload.Value {
		assignments, err := c.listAssignments(ctx, gu.ID)
		if err != nil {
			return nil, err
		}

		var roles []string
		for _, a := range assignments {
			if name, ok := c.roleName(a.AppRoleID); ok {
				roles = append(roles, name)
			}
		}
		if len(roles) == 0 {
			continue
		}

		users = append(users, User{
			UserPrincipalName: gu.UserPrincipalName,
			DisplayName:       gu.DisplayName,
			Email:             gu.Mail,
			Roles:             roles,
		})
	}

	return users, nil
}

// AssignRoles garante os papéis pedidos no utilizador, removendo os restantes
// papéis geridos.
func (c *GraphClient) AssignRoles(ctx context.Context, userPrincipalName string, admin, volunteer bool) error {
	gu, err := c.findUser(ctx, userPrincipalName)
	if err != nil {
		return err
	}

	wanted := map[string]bool{}
	if admin && c.cfg.AdminRoleID != "" {
		wanted[c.cfg.AdminRoleID] = true
	}
	if volunteer && c.cfg.VolunteerRoleID != "" {
		wanted[c.cfg.VolunteerRoleID] = true
	}

	assignments, err := c.listAssignments(ctx, gu.ID)
	if err != nil {
		return err
	}

	current := map[string]string{}
	for _, a := range assignments {
		if _, managed := c.roleName(a.AppRoleID); managed {
			current[a.AppRoleID] = a.ID
		}
	}

	for roleID := range wanted {
		if _, ok := current[roleID]; ok {
			continue
		}
		body := map[string]string{
			"principalId": gu.ID,
			"resourceId":  c.cfg.AppObjectID,
			"appRoleId":   roleID,
		}
		if err := c.post(ctx, fmt.Sprintf("/users/%s/appRoleAssignments", gu.ID), body); err != nil {
			return err
		}
	}

	for roleID, assignmentID := range current {
		if wanted[roleID] {
			continue
		}
		if err := c.delete(ctx, fmt.Sprintf("/users/%s/appRoleAssignments/%s", gu.ID, assignmentID)); err != nil {
			return err
		}
	}

	return nil
}

// RemoveManagedRoles retira todos os papéis geridos do utilizador.
func (c *GraphClient) RemoveManagedRoles(ctx context.Context, userPrincipalName string) error {
	return c.AssignRoles(ctx, userPrincipalName, false, false)
}

// ResolveUserEmail devolve o email do utilizador, tentando cada grafia
// candidata até encontrar o registo.
func (c *GraphClient) ResolveUserEmail(ctx context.Context, userPrincipalName string) (string, error) {
	gu, err := c.findUser(ctx, userPrincipalName)
	if err != nil {
		return "", err
	}

	if email := strings.TrimSpace(gu.Mail); email != "" {
		return email, nil
	}

	// Contas convidadas sem mail têm frequentemente o email na forma
	// canónica do principal.
	normalized := c.normalizer.Normalize(gu.UserPrincipalName)
	if strings.Contains(normalized, "@") {
		return normalized, nil
	}

	return "", fmt.Errorf("utilizador %s sem email no diretório", userPrincipalName)
}

func (c *GraphClient) findUser(ctx context.Context, userPrincipalName string) (*graphUser, error) {
	for _, candidate := range c.normalizer.Candidates(userPrincipalName) {
		var gu graphUser
		path := fmt.Sprintf("/users/%s?$select=id,userPrincipalName,displayName,mail", url.PathEscape(candidate))
		err := c.get(ctx, path, &gu)
		if err == nil && gu.ID != "" {
			return &gu, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (c *GraphClient) listAssignments(ctx context.Context, userID string) ([]roleAssignment, error) {
	var payload struct {
		Value []roleAssignment `json:"value"`
	}
	path := fmt.Sprintf("/users/%s/appRoleAssignments?$top=999", userID)
	if err := c.get(ctx, path, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var managed []roleAssignment
	for _, a := range payload.Value {
		if _, ok := c.roleName(a.AppRoleID); ok {
			managed = append(managed, a)
		}
	}
	return managed, nil
}

func (c *GraphClient) roleName(appRoleID string) (string, bool) {
	switch appRoleID {
	case c.cfg.AdminRoleID:
		return c.adminRole, c.cfg.AdminRoleID != ""
	case c.cfg.VolunteerRoleID:
		return c.volunteerRole, c.cfg.VolunteerRoleID != ""
	default:
		return "", false
	}
}

func (c *GraphClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *GraphClient) post(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *GraphClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *GraphClient) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader *strings.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(encoded))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("diretório: %s %s devolveu %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *GraphClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")
	form.Set("grant_type", "client_credentials")

	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(c.cfg.TenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("diretório: token devolveu %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("diretório: token vazio")
	}

	c.token = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
	return c.token, nil
}
