package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"
)

// apiClient talks to a running server with the stored session token.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(getAPIURL(), "/"),
		token:   loadToken(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and decodes a JSON response into out. Non-2xx
// responses are returned as errors carrying the server's message.
func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Code    string `json:"code"`
			Details []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"details"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := fmt.Sprintf("%s (%d %s)", apiErr.Error, resp.StatusCode, apiErr.Code)
		for _, d := range apiErr.Details {
			msg += fmt.Sprintf("\n  %s: %s", d.Field, d.Message)
		}
		return errors.New(msg)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Auth commands
func handleAuth(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: emsctl auth <login|first-login|logout|who>")
		return nil
	}

	switch args[0] {
	case "login":
		return loginUser(args[1:])
	case "first-login":
		return firstLogin(args[1:])
	case "logout":
		return logoutUser()
	case "who":
		return whoAmI()
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
}

type sessionResponse struct {
	Message      string `json:"message"`
	Token        string `json:"token"`
	IsFirstLogin bool   `json:"isFirstLogin"`
	User         struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func loginUser(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fs.PrintDefaults()
		return errors.New("email and password are required")
	}

	var resp sessionResponse
	if err := newAPIClient().do(http.MethodPost, "/auth/login", map[string]string{"email": *email, "password": *password}, &resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveToken(resp.Token); err != nil {
		return err
	}
	fmt.Printf("✓ Logged in as: %s (%s)\n", resp.User.Email, resp.User.Role)
	if resp.IsFirstLogin {
		fmt.Println("  First login pending: run `emsctl auth first-login` to set a permanent password")
	}
	return nil
}

func firstLogin(args []string) error {
	fs := flag.NewFlagSet("first-login", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	temp := fs.String("temp-password", "", "temporary password from the invitation")
	newPassword := fs.String("new-password", "", "new password (at least 8 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *temp == "" || *newPassword == "" {
		fs.PrintDefaults()
		return errors.New("email, temp-password and new-password are required")
	}

	var resp sessionResponse
	body := map[string]string{"email": *email, "tempPassword": *temp, "newPassword": *newPassword}
	if err := newAPIClient().do(http.MethodPost, "/auth/first-time-login", body, &resp); err != nil {
		return fmt.Errorf("first login failed: %w", err)
	}
	if err := saveToken(resp.Token); err != nil {
		return err
	}
	fmt.Printf("✓ Password set, logged in as: %s\n", resp.User.Email)
	return nil
}

func logoutUser() error {
	client := newAPIClient()
	if client.token != "" {
		if err := client.do(http.MethodPost, "/auth/logout", nil, nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: server logout failed: %v\n", err)
		}
	}
	if err := os.Remove(tokenFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Println("✓ Logged out")
	return nil
}

func whoAmI() error {
	var resp struct {
		User struct {
			Email      string `json:"email"`
			Role       string `json:"role"`
			IsActive   bool   `json:"isActive"`
			Onboarding *struct {
				Status string `json:"status"`
			} `json:"onboarding"`
		} `json:"user"`
	}
	client := newAPIClient()
	if client.token == "" {
		fmt.Println("Not logged in")
		return nil
	}
	if err := client.do(http.MethodGet, "/employee/profile", nil, &resp); err != nil {
		return err
	}
	status := "-"
	if resp.User.Onboarding != nil {
		status = resp.User.Onboarding.Status
	}
	fmt.Printf("✓ %s (%s) active=%t onboarding=%s\n", resp.User.Email, resp.User.Role, resp.User.IsActive, status)
	return nil
}

// Admin commands
func handleAdmin(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: emsctl admin <invite|invitations|pending|approve|reject>")
		return nil
	}

	switch args[0] {
	case "invite":
		return inviteEmployee(args[1:])
	case "invitations":
		return listInvitations()
	case "pending":
		return listPending()
	case "approve":
		return reviewOnboarding(args[1:], true)
	case "reject":
		return reviewOnboarding(args[1:], false)
	default:
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func inviteEmployee(args []string) error {
	fs := flag.NewFlagSet("invite", flag.ContinueOnError)
	email := fs.String("email", "", "employee email")
	name := fs.String("name", "", "employee name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		fs.PrintDefaults()
		return errors.New("email and name are required")
	}

	var resp struct {
		Invitation struct {
			ID        string    `json:"id"`
			ExpiresAt time.Time `json:"expiresAt"`
		} `json:"invitation"`
		TempPassword string `json:"tempPassword"`
	}
	if err := newAPIClient().do(http.MethodPost, "/admin/invite-employee", map[string]string{"email": *email, "name": *name}, &resp); err != nil {
		return fmt.Errorf("invite failed: %w", err)
	}
	fmt.Printf("✓ Invitation %s sent to %s (expires %s)\n", resp.Invitation.ID, *email, resp.Invitation.ExpiresAt.Format(time.RFC1123))
	if resp.TempPassword != "" {
		fmt.Printf("  Temporary password: %s\n", resp.TempPassword)
	}
	return nil
}

func listInvitations() error {
	var resp struct {
		Invitations []struct {
			ID        string    `json:"id"`
			Email     string    `json:"email"`
			Status    string    `json:"status"`
			ExpiresAt time.Time `json:"expiresAt"`
		} `json:"invitations"`
	}
	if err := newAPIClient().do(http.MethodGet, "/admin/invitations", nil, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tSTATUS\tEXPIRES")
	for _, inv := range resp.Invitations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inv.ID, inv.Email, inv.Status, inv.ExpiresAt.Format(time.DateTime))
	}
	return w.Flush()
}

func listPending() error {
	var resp struct {
		PendingApprovals []struct {
			ID          string     `json:"id"`
			SubmittedAt *time.Time `json:"submittedAt"`
			User        struct {
				Email     string `json:"email"`
				Name      string `json:"name"`
				Documents []any  `json:"documents"`
			} `json:"user"`
		} `json:"pendingApprovals"`
	}
	if err := newAPIClient().do(http.MethodGet, "/admin/pending-approvals", nil, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ONBOARDING\tEMAIL\tNAME\tDOCS\tSUBMITTED")
	for _, p := range resp.PendingApprovals {
		submitted := "-"
		if p.SubmittedAt != nil {
			submitted = p.SubmittedAt.Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.User.Email, p.User.Name, len(p.User.Documents), submitted)
	}
	return w.Flush()
}

func reviewOnboarding(args []string, approved bool) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return errors.New("usage: emsctl admin approve|reject <onboarding-id> [-notes text] [-reason text]")
	}
	id := args[0]

	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	notes := fs.String("notes", "", "reviewer notes")
	reason := fs.String("reason", "", "rejection reason (required to reject)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	body := map[string]any{"approved": approved, "notes": *notes}
	if !approved {
		body["rejectionReason"] = *reason
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := newAPIClient().do(http.MethodPut, "/admin/approve-employee/"+id, body, &resp); err != nil {
		return err
	}
	fmt.Printf("✓ %s\n", resp.Message)
	return nil
}

// Employee commands
func handleEmployee(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: emsctl employee <profile|documents|submit>")
		return nil
	}

	client := newAPIClient()
	switch args[0] {
	case "profile":
		var resp map[string]any
		if err := client.do(http.MethodGet, "/employee/profile", nil, &resp); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "documents":
		var resp struct {
			Documents []struct {
				Type       string    `json:"type"`
				FileName   string    `json:"fileName"`
				FileSize   int64     `json:"fileSize"`
				UploadedAt time.Time `json:"uploadedAt"`
			} `json:"documents"`
		}
		if err := client.do(http.MethodGet, "/employee/documents", nil, &resp); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tFILE\tSIZE\tUPLOADED")
		for _, d := range resp.Documents {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Type, d.FileName, d.FileSize, d.UploadedAt.Format(time.DateTime))
		}
		return w.Flush()
	case "submit":
		var resp struct {
			Message string `json:"message"`
		}
		if err := client.do(http.MethodPost, "/employee/submit-onboarding", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("✓ %s\n", resp.Message)
		return nil
	default:
		return fmt.Errorf("unknown employee command: %s", args[0])
	}
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("EMS_API"); url != "" {
		return url
	}
	return "http://localhost:3001/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ems", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}
