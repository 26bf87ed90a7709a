package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gpng/edge-relay/services/backend"
	"github.com/gpng/edge-relay/services/deploylog"
)

// placeholder left in supabase-config.json until it is filled in
const placeholder = "ВСТАВЬ_СЮДА_"

var errNotConfigured = errors.New("supabase-config.json still has placeholder values")

type supabaseConfig struct {
	ProjectURL       string `json:"project_url" validate:"required,url"`
	AnonKey          string `json:"anon_key" validate:"required"`
	ServiceRoleKey   string `json:"service_role_key"`
	DatabasePassword string `json:"database_password"`
}

type supabaseCredentials struct {
	ProjectURL       string    `json:"project_url"`
	AnonKey          string    `json:"anon_key"`
	ServiceRoleKey   string    `json:"service_role_key"`
	DatabasePassword string    `json:"database_password"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// paths used by one run
type paths struct {
	config      string
	env         string
	credentials string
}

func loadConfig(path string) (supabaseConfig, error) {
	var cfg supabaseConfig

	b, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, v := range []string{cfg.ProjectURL, cfg.AnonKey, cfg.ServiceRoleKey, cfg.DatabasePassword} {
		if strings.HasPrefix(v, placeholder) {
			return cfg, errNotConfigured
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errNotConfigured, err)
	}
	return cfg, nil
}

// renderEnv produces the relay's .env file. Backend and bot values are left
// as placeholders to be filled in after those are deployed.
func renderEnv(cfg supabaseConfig) string {
	return fmt.Sprintf(`# Supabase Configuration
SUPABASE_URL=%s
SUPABASE_ANON_KEY=%s
SUPABASE_SERVICE_ROLE_KEY=%s

# Workflow engine (update after the backend is deployed)
AWS_N8N_ENDPOINT=%s

# Telegram Bot (from @BotFather)
TELEGRAM_BOT_TOKEN=your_telegram_bot_token
`, cfg.ProjectURL, cfg.AnonKey, cfg.ServiceRoleKey, backend.DefaultEndpoint)
}

// mergeCredentials replaces the supabase section of the credentials file and
// keeps every other section as it was
func mergeCredentials(path string, cfg supabaseConfig, now time.Time) error {
	credentials := map[string]json.RawMessage{}

	b, err := ioutil.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &credentials); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return err
	}

	section, err := json.Marshal(supabaseCredentials{
		ProjectURL:       cfg.ProjectURL,
		AnonKey:          cfg.AnonKey,
		ServiceRoleKey:   cfg.ServiceRoleKey,
		DatabasePassword: cfg.DatabasePassword,
		UpdatedAt:        now.UTC(),
	})
	if err != nil {
		return err
	}
	credentials["supabase"] = section

	out, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, append(out, '\n'), 0600)
}

func update(p paths, log *deploylog.Collector, now time.Time) error {
	log.Info("updating Supabase configuration")

	cfg, err := loadConfig(p.config)
	if err != nil {
		if errors.Is(err, errNotConfigured) {
			log.Error("fill in " + filepath.Base(p.config) + " with the values from the Supabase dashboard first")
		} else {
			log.Error("reading config: " + err.Error())
		}
		return err
	}

	if err := ioutil.WriteFile(p.env, []byte(renderEnv(cfg)), 0600); err != nil {
		log.Error("writing " + p.env + ": " + err.Error())
		return err
	}
	log.Info("wrote " + p.env)

	if err := mergeCredentials(p.credentials, cfg, now); err != nil {
		log.Error("updating " + p.credentials + ": " + err.Error())
		return err
	}
	log.Info("updated " + p.credentials)

	log.Success("Supabase configuration updated")
	return nil
}

// check queries the analytics table through the REST API
func check(ctx context.Context, client *http.Client, p paths, log *deploylog.Collector) error {
	log.Info("testing Supabase connection")

	cfg, err := loadConfig(p.config)
	if err != nil {
		log.Error("reading config: " + err.Error())
		return err
	}

	url := strings.TrimRight(cfg.ProjectURL, "/") + "/rest/v1/workflow_analytics?select=id&limit=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Error(err.Error())
		return err
	}
	req.Header.Set("apikey", cfg.AnonKey)
	req.Header.Set("Authorization", "Bearer "+cfg.AnonKey)

	resp, err := client.Do(req)
	if err != nil {
		log.Error("connection error: " + err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := ioutil.ReadAll(resp.Body)
		err := fmt.Errorf("supabase responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		log.Error(err.Error())
		return err
	}

	log.Success("connected to Supabase")
	return nil
}
