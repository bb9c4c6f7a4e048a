package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	aqua "github.com/baccigalupi/aqua-sub000"
)

func (a *app) getCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get <database> <id>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *aqua.DB) error {
				doc, err := db.Database(args[0]).Get(args[1])
				if err != nil {
					return err
				}
				return printDoc(cmd, doc, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func printDoc(cmd *cobra.Command, doc *aqua.Document, format string) error {
	w := cmd.OutOrStdout()
	switch format {
	case "json":
		raw, err := json.MarshalIndent(struct {
			ID   string     `json:"id"`
			Rev  string     `json:"rev"`
			Body *aqua.Node `json:"body"`
		}{doc.ID, doc.Rev, doc.Body}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", raw)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(mapping("id", scalar(doc.ID), "rev", scalar(doc.Rev), "body", nodeYAML(doc.Body))); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (a *app) idsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids <database>",
		Short: "List document ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *aqua.DB) error {
				ids, err := db.Database(args[0]).IDs()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func (a *app) attachmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attachments <database> <id>",
		Short: "List the attachments of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *aqua.DB) error {
				d := db.Database(args[0])
				names, err := d.AttachmentNames(args[1])
				if err != nil {
					return err
				}
				for _, name := range names {
					f, err := d.Attachment(args[1], name)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", name, f.ContentType(), f.Len())
				}
				return nil
			})
		},
	}
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <database> <id> <name>",
		Short: "Write an attachment to stdout",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *aqua.DB) error {
				data, err := db.Database(args[0]).GetAttachment(args[1], args[2])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}

func (a *app) dumpCmd() *cobra.Command {
	var noDocs, noAttachments bool
	cmd := &cobra.Command{
		Use:   "dump [database...]",
		Short: "Dump databases in a human-readable form",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := aqua.DumpAll
			if noDocs {
				f &^= aqua.DumpDocs
			}
			if noAttachments {
				f &^= aqua.DumpAttachments
			}
			return a.withDB(func(db *aqua.DB) error {
				return db.Dump(cmd.OutOrStdout(), f, args...)
			})
		},
	}
	cmd.Flags().BoolVar(&noDocs, "no-docs", false, "omit documents")
	cmd.Flags().BoolVar(&noAttachments, "no-attachments", false, "omit attachments")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-database statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *aqua.DB) error {
				stats, err := db.Stats()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATABASE\tDOCS\tATTACHMENTS\tSIZE\tALLOC")
				for _, s := range stats {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Name, s.Docs, s.Attachments, s.TotalSize(), s.TotalAlloc())
				}
				return tw.Flush()
			})
		},
	}
}
