package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iudanet/docsync/internal/client/api"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	pkgapi "github.com/iudanet/docsync/pkg/api"
)

func (c *Cli) getCmd() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print an entity, or one field value with --field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withTimeout(cmd.Context())
			defer cancel()

			sess, err := c.session(ctx, cmd)
			if err != nil {
				return err
			}
			entity, err := c.api(sess).GetEntity(ctx, c.ref(sess, args[0]))
			if err != nil {
				return err
			}

			if field == "" {
				return c.printJSON(pkgapi.EntityFromModel(*entity))
			}
			value, ok := entity.Fields[field][c.opts.locale]
			if !ok {
				return fmt.Errorf("field %q has no %s value", field, c.opts.locale)
			}
			if s, isString := value.(string); isString {
				c.io.Println(s)
				return nil
			}
			return c.printJSON(value)
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "print only this field in --locale")
	return cmd
}

func (c *Cli) createCmd() *cobra.Command {
	var id, contentType string
	var values []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an entry or asset",
		Long: `Creates an entity. The id defaults to a random UUID. Field values are
given as --set field=value in --locale; values of non-text fields are JSON.`,
		Example: `  docsync create --content-type post --set title=Hello --set views=3`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withTimeout(cmd.Context())
			defer cancel()

			sess, err := c.session(ctx, cmd)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			ref := c.ref(sess, id)
			client := c.api(sess)

			ct := models.AssetContentType
			if ref.Type == models.EntityTypeEntry {
				if contentType == "" {
					return errors.New("--content-type is required for entries")
				}
				got, err := client.GetContentType(ctx, ref.Space, ref.Environment, contentType)
				if err != nil {
					return fmt.Errorf("failed to load content type: %w", err)
				}
				ct = *got
			}

			fields := models.Fields{}
			for _, kv := range values {
				name, raw, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want field=value", kv)
				}
				value, err := parseValue(ct, name, raw)
				if err != nil {
					return err
				}
				if fields[name] == nil {
					fields[name] = map[string]any{}
				}
				fields[name][c.opts.locale] = value
			}

			entity, err := client.CreateEntity(ctx, ref, contentType, fields)
			if err != nil {
				return err
			}
			c.io.Printf("✓ Created %s %s (version %d)\n", entity.Sys.Type, entity.Sys.ID, entity.Sys.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "entity id (default random UUID)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type of the entry")
	cmd.Flags().StringArrayVar(&values, "set", nil, "field=value, repeatable")
	return cmd
}

func (c *Cli) applyCmd() *cobra.Command {
	var file string
	var deep bool

	cmd := &cobra.Command{
		Use:   "apply <id> -f fields.json",
		Short: "Bring the entity fields in line with a JSON file",
		Long: `Reads {"field": {"locale": value}} (or a whole entity with a "fields" key),
computes the patch against the current fields and sends it in one request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withTimeout(cmd.Context())
			defer cancel()

			sess, err := c.session(ctx, cmd)
			if err != nil {
				return err
			}
			fields, err := readFields(file)
			if err != nil {
				return err
			}
			return c.runApply(ctx, c.api(sess), c.ref(sess, args[0]), fields, patch.DiffOptions{Deep: deep})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file, - for stdin")
	cmd.Flags().BoolVar(&deep, "deep", false, "diff nested objects and arrays instead of replacing them")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *Cli) runApply(ctx context.Context, client *api.Client, ref models.Ref, fields models.Fields, opts patch.DiffOptions) error {
	cur, err := client.GetEntity(ctx, ref)
	if err != nil {
		return err
	}

	updated := cur.Clone()
	updated.Fields = fields
	ops := patch.ComputePatch(*cur, updated, opts)
	if len(ops) == 0 {
		c.io.Println("No changes.")
		return nil
	}

	entity, err := client.PatchEntity(ctx, ref, cur.Sys.Version, ops)
	if err != nil {
		var conflict *models.VersionConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("entity changed while applying, run apply again: %w", err)
		}
		return err
	}
	c.io.Printf("✓ Applied %d operation(s), version %d\n", len(ops), entity.Sys.Version)
	return nil
}

// readFields loads fields from path, or stdin when path is "-".
func readFields(path string) (models.Fields, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc struct {
		Fields models.Fields `json:"fields"`
	}
	if err := json.Unmarshal(data, &doc); err == nil && doc.Fields != nil {
		return doc.Fields, nil
	}
	var fields models.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid fields file: %w", err)
	}
	if fields == nil {
		fields = models.Fields{}
	}
	return fields, nil
}

// parseValue reads raw as JSON unless the field holds plain text.
func parseValue(ct models.ContentType, fieldID, raw string) (any, error) {
	f, known := ct.Field(fieldID)
	if known && (f.Type.IsString() || f.Type == models.FieldTypeDate) {
		return raw, nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		if !known {
			// неизвестное поле: считаем строкой
			return raw, nil
		}
		return nil, fmt.Errorf("value of %q must be JSON for a %s field: %w", fieldID, f.Type, err)
	}
	return v, nil
}

func (c *Cli) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	c.io.Println(string(data))
	return nil
}
