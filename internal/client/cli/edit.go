package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/docsync/internal/client/document"
	"github.com/iudanet/docsync/internal/patch"
)

func (c *Cli) setCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Set one field value through the live document",
		Long: `Opens the entity on the realtime channel and edits one field in --locale.
Text fields are sent as character edits and merge with concurrent edits
of other users. Values of other fields are JSON. An empty value removes it.`,
		Example: `  docsync set 3f2a… title "Hello, world"
  docsync set 3f2a… views 42`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEdit(cmd, args[0], args[1], func(ctx context.Context, doc *document.Document, path patch.Path) error {
				value, err := parseValue(doc.ContentType(), args[1], args[2])
				if err != nil {
					return err
				}
				return doc.SetValueAt(ctx, path, value)
			})
		},
	}
	return cmd
}

func (c *Cli) unsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <id> <field>",
		Short: "Remove one field value through the live document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEdit(cmd, args[0], args[1], func(ctx context.Context, doc *document.Document, path patch.Path) error {
				return doc.RemoveValueAt(ctx, path)
			})
		},
	}
}

func (c *Cli) runEdit(cmd *cobra.Command, id, field string, edit func(ctx context.Context, doc *document.Document, path patch.Path) error) error {
	ctx, cancel := c.withTimeout(cmd.Context())
	defer cancel()

	sess, err := c.session(ctx, cmd)
	if err != nil {
		return err
	}

	path := patch.FieldPath(field, c.opts.locale)
	return c.withDocument(ctx, sess, c.ref(sess, id), func(ctx context.Context, doc *document.Document) error {
		if err := edit(ctx, doc, path); err != nil {
			return err
		}
		if err := doc.Flush(ctx); err != nil {
			return err
		}
		c.io.Printf("✓ Saved %s, version %d\n", path, doc.Sys().Version)
		return nil
	})
}
