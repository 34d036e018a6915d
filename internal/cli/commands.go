package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mindlog-agent/internal/config"
	"mindlog-agent/internal/credentials"
	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/usecase"
)

const dateLayout = "2006-01-02"

func (a *app) analyzeCommand() *cobra.Command {
	var imagePaths []string
	cmd := &cobra.Command{
		Use:   "analyze <text>",
		Short: "Extract tags, summary, sentiment, todos, shopping and schedule items from an entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			images := make([]domain.Image, 0, len(imagePaths))
			for _, p := range imagePaths {
				img, err := readImage(p)
				if err != nil {
					return err
				}
				images = append(images, img)
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			res, err := svc.Analyze(cmd.Context(), usecase.AnalyzeInput{Text: text, Images: images})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringArrayVar(&imagePaths, "image", nil, "Image file to attach (repeatable, at most 3 are sent)")
	return cmd
}

func (a *app) chatCommand() *cobra.Command {
	var personality, historyPath string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Talk to the journal assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePersonality(personality)
			if err != nil {
				return err
			}
			var history []domain.ChatTurn
			if historyPath != "" {
				if err := readJSONFile(historyPath, &history); err != nil {
					return err
				}
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			out, err := svc.Chat(cmd.Context(), usecase.ChatInput{Message: args[0], Personality: p, History: history})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"reply": out.Reply, "conversationId": out.ConversationID})
		},
	}
	cmd.Flags().StringVar(&personality, "personality", string(domain.PersonalityWarm), "warm, professional, optimistic, philosophical or concise")
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file with prior turns, oldest first")
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	var entriesPath, kind, from, to string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a weekly or monthly review of journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := domain.ParseReviewKind(kind)
			if err != nil {
				return err
			}
			in := usecase.ReportInput{Kind: k}
			if in.PeriodStart, err = parseDay(from, false); err != nil {
				return err
			}
			if in.PeriodEnd, err = parseDay(to, true); err != nil {
				return err
			}
			if err := readJSONFile(entriesPath, &in.Entries); err != nil {
				return err
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			report, err := svc.Report(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&entriesPath, "entries", "", "JSON file with the entries to review")
	cmd.Flags().StringVar(&kind, "kind", string(domain.ReviewWeekly), "weekly or monthly")
	cmd.Flags().StringVar(&from, "from", "", "First day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day of the period (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("entries")
	cmd.MarkFlagsRequiredTogether("from", "to")
	return cmd
}

func (a *app) layoutCommand() *cobra.Command {
	var template string
	var imageCount int
	cmd := &cobra.Command{
		Use:   "layout <content>",
		Short: "Suggest a page layout for an entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := domain.ParseLayoutTemplate(template)
			if err != nil {
				return err
			}
			var content string
			if len(args) == 1 {
				content = args[0]
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			out, err := svc.Layout(cmd.Context(), usecase.LayoutInput{Content: content, Template: tmpl, ImageCount: imageCount})
			if err != nil {
				return err
			}
			// The layout is the provider's own JSON text; print it as is.
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Layout)
			return err
		},
	}
	cmd.Flags().StringVar(&template, "template", string(domain.LayoutAuto), "minimal, classic, story, todo, artistic or auto")
	cmd.Flags().IntVar(&imageCount, "images", 0, "Number of images on the page")
	return cmd
}

func (a *app) keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys in the OS keychain",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <provider> <key>",
			Short: "Store a provider API key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				provider, err := knownProvider(args[0])
				if err != nil {
					return err
				}
				if err := a.keys.Set(provider, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s key (%s overrides it)\n", provider, credentials.EnvVar(provider))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <provider>",
			Short: "Remove a stored provider API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				provider, err := knownProvider(args[0])
				if err != nil {
					return err
				}
				if err := a.keys.Delete(provider); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s key\n", provider)
				return nil
			},
		},
	)
	return cmd
}

func knownProvider(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case config.ProviderGemini, config.ProviderKimi:
		return name, nil
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

func readImage(path string) (domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return domain.Image{}, errors.New("read image: " + path + " is empty")
	}
	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return domain.Image{}, fmt.Errorf("read image: %s is %s, not an image", path, mime)
	}
	return domain.Image{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(data)}, nil
}

// parseDay reads a local calendar day. endOfDay selects its last instant.
func parseDay(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}
