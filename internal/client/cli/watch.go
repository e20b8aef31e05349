package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/docsync/internal/client/document"
	"github.com/iudanet/docsync/internal/client/resource"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
)

func (c *Cli) watchCmd() *cobra.Command {
	var focus string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow changes, state and collaborators of a document",
		Long: `Opens the document on the realtime channel and prints every change,
lifecycle state change and the list of collaborators until interrupted.
With --focus the field is announced to other collaborators.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			sess, err := c.session(ctx, cmd)
			if err != nil {
				return err
			}
			return c.withDocument(ctx, sess, c.ref(sess, args[0]), func(ctx context.Context, doc *document.Document) error {
				return c.watch(ctx, doc, focus)
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "announce focus on this field in --locale")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default until interrupted)")
	return cmd
}

func (c *Cli) watch(ctx context.Context, doc *document.Document, focus string) error {
	var mu sync.Mutex
	say := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		c.io.Printf(format+"\n", a...)
	}

	sys := doc.Sys()
	say("Watching %s %s: version %d, %s", sys.Type, sys.ID, sys.Version, doc.Resource().Current())

	stops := []func(){
		doc.Changes().Subscribe(func(ch document.Change) {
			if ch.Origin == document.OriginLocal {
				return
			}
			say("v%d %s: %s", ch.AfterSys.Version, ch.Origin, describeChange(ch))
		}),
		doc.Resource().StateChanges().Subscribe(func(t resource.Transition) {
			say("state: %s → %s", t.From, t.To)
		}),
		doc.Status().Subscribe(func(s document.Status) {
			say("document: %s", s)
		}),
		doc.Presence().Collaborators().Observe(func(users []models.User) {
			say("collaborators: %s", describeUsers(users))
		}),
	}
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	if focus != "" {
		doc.Presence().Focus(focus, c.opts.locale)
	}

	<-ctx.Done()
	doc.Presence().Leave()
	return nil
}

// describeChange lists the field paths that differ between the trees.
func describeChange(ch document.Change) string {
	before := models.Entity{Fields: models.FieldsFromTree(ch.Before)}
	after := models.Entity{Fields: models.FieldsFromTree(ch.After)}
	ops := patch.ComputePatch(before, after, patch.DiffOptions{})
	if len(ops) == 0 {
		return "sys only"
	}

	seen := make(map[string]bool, len(ops))
	var paths []string
	for _, op := range ops {
		p := op.Path.String()
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return strings.Join(paths, ", ")
}

func describeUsers(users []models.User) string {
	if len(users) == 0 {
		return "none"
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		if u.Name != "" {
			names = append(names, fmt.Sprintf("%s (%s)", u.Name, u.ID))
		} else {
			names = append(names, u.ID)
		}
	}
	return strings.Join(names, ", ")
}
