package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JaligamRishitha/renewmart-sub002/internal/app"
	"github.com/JaligamRishitha/renewmart-sub002/internal/config"
	"github.com/JaligamRishitha/renewmart-sub002/internal/db"
	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
	"github.com/JaligamRishitha/renewmart-sub002/internal/engine"
	"github.com/JaligamRishitha/renewmart-sub002/internal/repo"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
	"github.com/JaligamRishitha/renewmart-sub002/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "renewmart",
	Short: "RenewMart CLI",
	Long: `RenewMart is a marketplace for renewable-energy land projects.
Landowners list sites, three fixed reviewer roles (sales advisor, analyst,
governance lead) work them through tasks and document reviews, and approved
listings get published for investors to register interest.

The workspace keeps a .renewmart directory with the database; renewmart.yml
holds the marketplace config (document catalog, role visibility defaults,
progress policy, webhooks).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RENEWMART")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(landCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(docCmd())
	rootCmd.AddCommand(mappingCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(marketCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func landCmd() *cobra.Command {
	land := &cobra.Command{Use: "land", Short: "Manage land listings"}
	land.AddCommand(landCreateCmd())
	land.AddCommand(landListCmd())
	land.AddCommand(landGetCmd())
	land.AddCommand(landUpdateCmd())
	land.AddCommand(landStatusCmd())
	land.AddCommand(landDeleteCmd())
	return land
}

func landDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <land-id>",
		Short: "Delete a draft or rejected listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteLand(ctx, args[0], viper.GetString("actor-id"), viper.GetBool("force")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func landCreateCmd() *cobra.Command {
	var title, location, energy, desc, owner string
	var capacity, price float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "List a new land project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				if owner == "" {
					owner = actor
				}
				opts := engine.LandCreateOptions{
					OwnerID:     owner,
					Title:       title,
					Location:    location,
					EnergyType:  energy,
					Description: desc,
					ActorID:     actor,
				}
				if cmd.Flags().Changed("capacity-mw") {
					opts.CapacityMW = &capacity
				}
				if cmd.Flags().Changed("asking-price") {
					opts.AskingPrice = &price
				}
				l, err := e.CreateLand(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "listing title")
	cmd.Flags().StringVar(&location, "location", "", "site location")
	cmd.Flags().StringVar(&energy, "energy-type", "", "solar|wind|hydro|geothermal|biomass")
	cmd.Flags().Float64Var(&capacity, "capacity-mw", 0, "estimated capacity in MW")
	cmd.Flags().Float64Var(&price, "asking-price", 0, "asking price")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&owner, "owner-id", "", "owner id (defaults to actor)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("energy-type")
	return cmd
}

func landListCmd() *cobra.Command {
	var f repo.LandFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List land projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				lands, err := e.Repo.ListLands(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(lands)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Energy", "Status", "Location", "Owner"})
				for _, l := range lands {
					tw.AppendRow(table.Row{l.ID, l.Title, l.EnergyType, l.Status, l.Location, l.OwnerID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner-id", "", "owner filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.EnergyType, "energy-type", "", "energy type filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func landGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <land-id>",
		Short: "Show a land project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.Repo.GetLand(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	return cmd
}

func landUpdateCmd() *cobra.Command {
	var title, location, energy, desc string
	var capacity, price float64
	cmd := &cobra.Command{
		Use:   "update <land-id>",
		Short: "Update a draft or rejected listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.LandUpdateOptions{
					ID:      args[0],
					ActorID: viper.GetString("actor-id"),
					Force:   viper.GetBool("force"),
				}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("location") {
					opts.Location = &location
				}
				if cmd.Flags().Changed("energy-type") {
					opts.EnergyType = &energy
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("capacity-mw") {
					opts.CapacityMW = &capacity
				}
				if cmd.Flags().Changed("asking-price") {
					opts.AskingPrice = &price
				}
				l, err := e.UpdateLand(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "listing title")
	cmd.Flags().StringVar(&location, "location", "", "site location")
	cmd.Flags().StringVar(&energy, "energy-type", "", "energy type")
	cmd.Flags().Float64Var(&capacity, "capacity-mw", 0, "estimated capacity in MW")
	cmd.Flags().Float64Var(&price, "asking-price", 0, "asking price")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func landStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <land-id> <status>",
		Short: "Move a listing through its lifecycle",
		Long:  "Lifecycle: draft -> submitted -> under_review -> approved|rejected; approved -> published; rejected -> submitted.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.SetLandStatus(ctx, args[0], args[1], viper.GetString("actor-id"), viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage review tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create <land-id>",
		Short: "Create a review task",
		Long:  "When --role is omitted the role is resolved from the task type and title keywords; unmatched tasks fall to the analyst.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.LandID = args[0]
				opts.ActorID = viper.GetString("actor-id")
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.AssignedRole, "role", "", "re_sales_advisor|re_analyst|re_governance_lead")
	cmd.Flags().StringVar(&opts.AssignedTo, "assignee-id", "", "assignee user id")
	cmd.Flags().StringVar(&opts.TaskType, "type", "", "task type hint (e.g. feasibility, compliance)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list <land-id>",
		Short: "List review tasks for a land",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.LandID = args[0]
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Role", "Status", "Assignee"})
				for _, t := range tasks {
					assignee := ""
					if t.AssignedTo != nil {
						assignee = *t.AssignedTo
					}
					// legacy rows can hold role keys outside the catalog;
					// those render as Unclassified instead of a raw key
					tw.AppendRow(table.Row{t.ID, t.Title, review.RoleLabel(review.RoleKey(t.AssignedRole)), t.Status, assignee})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.AssignedRole, "role", "", "role filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assignee-id", "", "assignee filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var status, role, assignee string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task status, role, or assignee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskUpdateOptions{
					ID:      args[0],
					ActorID: viper.GetString("actor-id"),
					Force:   viper.GetBool("force"),
				}
				if cmd.Flags().Changed("status") {
					opts.Status = status
				}
				if cmd.Flags().Changed("role") {
					opts.AssignedRole = role
				}
				if cmd.Flags().Changed("assignee-id") {
					opts.Assign = &assignee
				}
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending|in_progress|completed|approved|rejected")
	cmd.Flags().StringVar(&role, "role", "", "reassign to role")
	cmd.Flags().StringVar(&assignee, "assignee-id", "", "reassign to user (empty to unassign)")
	return cmd
}

func subtaskCmd() *cobra.Command {
	sub := &cobra.Command{Use: "subtask", Short: "Manage subtasks"}
	sub.AddCommand(subtaskAddCmd())
	sub.AddCommand(subtaskListCmd())
	sub.AddCommand(subtaskStatusCmd())
	return sub
}

func subtaskAddCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add a subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.AddSubtask(ctx, args[0], title, desc, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "subtask title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func subtaskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				subs, err := e.Repo.ListSubtasks(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(subs)
			})
		},
	}
	return cmd
}

func subtaskStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <subtask-id> <status>",
		Short: "Update subtask status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.SetSubtaskStatus(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func docCmd() *cobra.Command {
	doc := &cobra.Command{Use: "doc", Short: "Manage documents"}
	doc.AddCommand(docRecordCmd())
	doc.AddCommand(docListCmd())
	doc.AddCommand(docReviewCmd())
	doc.AddCommand(docTypesCmd())
	return doc
}

func docRecordCmd() *cobra.Command {
	var opts engine.DocumentRecordOptions
	var size int64
	cmd := &cobra.Command{
		Use:   "record <land-id>",
		Short: "Record an uploaded document",
		Long:  "Each (land, type, slot) lineage versions independently; re-recording the same lineage yields version max+1.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.LandID = args[0]
				opts.ActorID = viper.GetString("actor-id")
				if opts.UploadedBy == "" {
					opts.UploadedBy = opts.ActorID
				}
				if cmd.Flags().Changed("size") {
					opts.FileSize = &size
				}
				d, err := e.RecordDocument(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.DocumentType, "type", "", "document type from the catalog")
	cmd.Flags().StringVar(&opts.DocSlot, "slot", "", "slot (e.g. D1, D2) for multi-file categories")
	cmd.Flags().StringVar(&opts.FileName, "file-name", "", "original file name")
	cmd.Flags().Int64Var(&size, "size", 0, "file size in bytes")
	cmd.Flags().StringVar(&opts.MimeType, "mime-type", "", "MIME type")
	cmd.Flags().StringVar(&opts.TaskID, "task-id", "", "originating task")
	cmd.Flags().StringVar(&opts.UploadedBy, "uploaded-by", "", "uploader id (defaults to actor)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("file-name")
	return cmd
}

func docListCmd() *cobra.Command {
	var f repo.DocumentFilters
	cmd := &cobra.Command{
		Use:   "list <land-id>",
		Short: "List documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.LandID = args[0]
				docs, err := e.Repo.ListDocuments(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(docs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Slot", "Version", "Status", "File"})
				for _, d := range docs {
					tw.AppendRow(table.Row{d.ID, d.DocumentType, d.DocSlot, d.VersionNumber, d.Status, d.FileName})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.DocumentType, "type", "", "document type filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().BoolVar(&f.LatestOnly, "latest-only", false, "only the newest version of each lineage")
	return cmd
}

func docReviewCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "review <document-id> <verdict>",
		Short: "Record a reviewer verdict (approved|rejected|under_review)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.ReviewDocument(ctx, args[0], args[1], note, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "review note")
	return cmd
}

func docTypesCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "types <land-id>",
		Short: "Document types visible to a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key := review.RoleKey(role)
				if !review.KnownRole(key) {
					return fmt.Errorf("unknown role %q", role)
				}
				types, err := e.VisibleDocumentTypes(ctx, args[0], key)
				if err != nil {
					return err
				}
				return printJSONOrTable(types)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "re_sales_advisor|re_analyst|re_governance_lead")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func mappingCmd() *cobra.Command {
	mapping := &cobra.Command{Use: "mapping", Short: "Per-land document visibility overrides"}
	mapping.AddCommand(mappingShowCmd())
	mapping.AddCommand(mappingSetCmd())
	mapping.AddCommand(mappingClearCmd())
	return mapping
}

func mappingShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <land-id>",
		Short: "Show the effective mapping source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("land id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Repo.GetDocMapping(ctx, args[0])
				if err != nil {
					return err
				}
				if m == nil {
					fmt.Println("no override; marketplace defaults apply")
					return printJSONOrTable(e.Config.DefaultMapping())
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func mappingSetCmd() *cobra.Command {
	var raw, file string
	cmd := &cobra.Command{
		Use:   "set <land-id>",
		Short: "Set the override from JSON",
		Long:  "An empty object {} is a valid override that hides every document type from every role.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := []byte(raw)
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				data = b
			}
			if len(data) == 0 {
				return fmt.Errorf("--json or --file required")
			}
			var m review.Mapping
			if err := json.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("parse mapping: %w", err)
			}
			if m == nil {
				m = review.Mapping{}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.SetDocMapping(ctx, args[0], m, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "mapping as inline JSON")
	cmd.Flags().StringVar(&file, "file", "", "mapping JSON file")
	return cmd
}

func mappingClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <land-id>",
		Short: "Remove the override, restoring marketplace defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.ClearDocMapping(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func progressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <land-id>",
		Short: "Review progress snapshot for a land",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.Gather(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Role", "Pct", "Done", "Total"})
				for _, role := range review.Roles() {
					res := snap.RoleResults[role]
					tw.AppendRow(table.Row{review.RoleLabel(role), res.Percentage, res.CompletedCount, res.TotalCount})
				}
				tw.AppendFooter(table.Row{"overall", snap.OverallPct, "", ""})
				tw.Render()
				fmt.Printf("weighted: %d%% (land %s)\n", snap.WeightedPct, snap.Land.Status)
				return nil
			})
		},
	}
	return cmd
}

func marketCmd() *cobra.Command {
	market := &cobra.Command{Use: "market", Short: "Marketplace browsing and interest"}
	market.AddCommand(marketListCmd())
	market.AddCommand(marketInterestCmd())
	market.AddCommand(marketInterestsCmd())
	return market
}

func marketListCmd() *cobra.Command {
	var energy, location string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse published listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				lands, err := e.Repo.ListLands(ctx, repo.LandFilters{
					Status:     "published",
					EnergyType: energy,
					Location:   location,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(lands)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Energy", "Location", "Capacity MW", "Asking"})
				for _, l := range lands {
					capacity, price := "", ""
					if l.CapacityMW != nil {
						capacity = fmt.Sprintf("%.1f", *l.CapacityMW)
					}
					if l.AskingPrice != nil {
						price = fmt.Sprintf("%.0f", *l.AskingPrice)
					}
					tw.AppendRow(table.Row{l.ID, l.Title, l.EnergyType, l.Location, capacity, price})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&energy, "energy-type", "", "energy type filter")
	cmd.Flags().StringVar(&location, "location", "", "location substring filter")
	return cmd
}

func marketInterestCmd() *cobra.Command {
	var message, investor string
	cmd := &cobra.Command{
		Use:   "interest <land-id>",
		Short: "Register interest in a published listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				if investor == "" {
					investor = actor
				}
				i, err := e.RegisterInterest(ctx, args[0], investor, message, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "message to the landowner")
	cmd.Flags().StringVar(&investor, "investor-id", "", "investor id (defaults to actor)")
	return cmd
}

func marketInterestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interests <land-id>",
		Short: "List registered interests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListInterests(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users and roles"}
	user.AddCommand(userRegisterCmd())
	user.AddCommand(userShowCmd())
	user.AddCommand(userGrantCmd())
	user.AddCommand(userRevokeCmd())
	return user
}

func userRegisterCmd() *cobra.Command {
	var u domain.User
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.RegisterUser(ctx, u, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&u.ID, "id", "", "user id (generated when omitted)")
	cmd.Flags().StringVar(&u.Email, "email", "", "email")
	cmd.Flags().StringVar(&u.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&u.LastName, "last-name", "", "last name")
	cmd.Flags().StringSliceVar(&u.Roles, "role", nil, "role (repeatable)")
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Repo.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userGrantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant-role <user-id> <role>",
		Short: "Grant a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				now := time.Now().UTC().Format(time.RFC3339)
				if err := e.Repo.EnsureUser(ctx, tx, args[0], now); err != nil {
					return err
				}
				if err := e.Repo.AssignUserRole(ctx, tx, args[0], args[1]); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	return cmd
}

func userRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke-role <user-id> <role>",
		Short: "Revoke a role from a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Repo.RevokeUserRole(ctx, tx, args[0], args[1]); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyRevokeCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				if userID == "" {
					userID = actor
				}
				key, plaintext, err := e.CreateAPIKey(ctx, userID, name, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"id":      key.ID,
					"user_id": key.UserID,
					"name":    key.Name,
					"api_key": plaintext,
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "key owner (defaults to actor)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "owner filter")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Audit event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var landID, evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, landID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&landID, "land-id", "", "land filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Marketplace configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configCheckCmd())
	return cfg
}

func configCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a config file before deploying it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := config.FromFile(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d document types, %d roles, %d webhooks)\n",
				path, len(cfg.Documents.Defaults), len(cfg.Roles.Catalog), len(cfg.Webhooks))
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default renewmart.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("RENEWMART_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" && !allowLegacy {
				return fmt.Errorf("RENEWMART_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor-header for local use)")
			}
			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(a.Engine)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving RenewMart API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id without credentials (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
