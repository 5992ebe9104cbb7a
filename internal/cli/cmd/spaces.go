package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mocraimer/chrome-spaces/internal/cli/styles"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active and archived spaces",
	RunE: func(_ *cobra.Command, _ []string) error {
		out, err := app.ListUC.Execute(app.Context())
		if err != nil {
			return err
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		renderer := styles.NewSpacesRenderer(app.Theme)
		fmt.Print(renderer.RenderList(out))
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <space-id> <name>",
	Short: "Rename a space",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		id := entity.SpaceID(args[0])
		if err := app.Spaces.Rename(app.Context(), id, args[1]); err != nil {
			return err
		}
		fmt.Println(app.Theme.SuccessStyle.Render("renamed"))
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <space-id>",
	Short: "Move a space into the archive",
	Long: `Move a space into the archive. If the daemon is running with a live
window for this space, the window keeps its tabs until the browser closes it;
prefer closing the window in the browser or using the control API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := app.Spaces.Archive(app.Context(), entity.SpaceID(args[0])); err != nil {
			return err
		}
		fmt.Println(app.Theme.SuccessStyle.Render("archived"))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <space-id>",
	Short: "Move an archived space back into the active set",
	Long: `Move an archived space back into the active set. Its window opens on
startup restore or when a window with matching tabs appears.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		space, err := app.Spaces.RestoreArchived(app.Context(), entity.SpaceID(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n",
			app.Theme.SuccessStyle.Render("restored"),
			app.Theme.Highlight.Render(space.Name),
		)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <space-id>",
	Short: "Permanently delete an archived space",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := app.Spaces.DeleteArchived(app.Context(), entity.SpaceID(args[0])); err != nil {
			return err
		}
		fmt.Println(app.Theme.SuccessStyle.Render("deleted"))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(listCmd, renameCmd, closeCmd, restoreCmd, deleteCmd)
}
