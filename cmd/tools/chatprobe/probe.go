package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	server  string
	userID  string
	role    string
	timeout time.Duration
	asJSON  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "chatprobe",
		Short:         "Talk to a running ticket assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultServer := os.Getenv("CHATPROBE_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", defaultServer, "assistant base URL")
	flags.StringVar(&opts.userID, "user", "", "sign the session in as this user id")
	flags.StringVar(&opts.role, "role", "user", "role of the signed-in user (user|admin)")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "per request timeout")
	flags.BoolVar(&opts.asJSON, "json", false, "print raw JSON responses")

	rootCmd.AddCommand(newAskCmd(opts), newKnowledgeCmd(opts))
	return rootCmd
}

// newAskCmd sends each argument as one message in a fresh session.
func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>...",
		Short: "Send one or more messages in a new session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newProbe(opts)
			sessionID, err := p.createSession()
			if err != nil {
				return err
			}

			for _, message := range args {
				var reply map[string]any
				if err := p.call(http.MethodPost, "/api/assistant/"+sessionID+"/messages", map[string]string{"message": message}, &reply); err != nil {
					return err
				}
				if err := p.print(cmd.OutOrStdout(), message, reply); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newKnowledgeCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Print the knowledge summary a new session sees",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newProbe(opts)
			sessionID, err := p.createSession()
			if err != nil {
				return err
			}

			var view struct {
				Summary   string   `json:"summary"`
				Freshness string   `json:"freshness"`
				Warnings  []string `json:"warnings"`
			}
			path := fmt.Sprintf("/api/assistant/%s/knowledge?force=%t", sessionID, force)
			if err := p.call(http.MethodGet, path, nil, &view); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			fmt.Fprintln(out, view.Summary)
			fmt.Fprintln(out, view.Freshness)
			for _, w := range view.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the freshness window")
	return cmd
}

type probe struct {
	opts   *options
	client *http.Client
}

func newProbe(opts *options) *probe {
	return &probe{opts: opts, client: &http.Client{Timeout: opts.timeout}}
}

func (p *probe) createSession() (string, error) {
	body := map[string]any{}
	if p.opts.userID != "" {
		body["user"] = map[string]string{"id": p.opts.userID, "role": p.opts.role}
	}

	var sess struct {
		ID string `json:"id"`
	}
	if err := p.call(http.MethodPost, "/api/session", body, &sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

func (p *probe) call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(p.opts.server, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

func (p *probe) print(w io.Writer, message string, reply map[string]any) error {
	if p.opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}

	fmt.Fprintf(w, "> %s\n", message)
	fmt.Fprintf(w, "[%v] %v\n", reply["intent"], reply["message"])
	if warning, ok := reply["warning"].(string); ok && warning != "" {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if action, ok := reply["action"].(map[string]any); ok {
		fmt.Fprintf(w, "action: %v\n", action["type"])
	}
	if suggestions, ok := reply["suggestions"].([]any); ok && len(suggestions) > 0 {
		parts := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			parts = append(parts, fmt.Sprint(s))
		}
		fmt.Fprintf(w, "suggestions: %s\n", strings.Join(parts, " | "))
	}
	fmt.Fprintln(w)
	return nil
}
