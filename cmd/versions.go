package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/longhang2004/content-service/internal/compress"
	"github.com/longhang2004/content-service/internal/config"
	"github.com/longhang2004/content-service/internal/service"
	"github.com/longhang2004/content-service/internal/store"
)

func init() {
	rootCmd.AddCommand(versionsCmd())
}

func versionsCmd() *cobra.Command {
	var contentID string

	command := &cobra.Command{
		Use:     "versions",
		Short:   "list the version history of a content item",
		Example: "content versions -c <content-id>",
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(contentID)
			if err != nil {
				logrus.Error("invalid content id, expected a valid uuid")
				return
			}

			cnf := config.LoadConfig()
			codec, err := compress.New(cnf.Compression)
			if err != nil {
				logrus.Error(err)
				return
			}

			versioning := service.NewVersioningService(codec, store.NewGormStore(config.GetDb(cnf)))

			versions, total, err := versioning.ListVersions(context.Background(), id, 0, 0)
			if err != nil {
				logrus.Error(err)
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tCREATED AT\tCREATED BY\tNOTE")
			for _, ver := range versions {
				createdBy := ""
				if ver.CreatedBy != nil {
					createdBy = *ver.CreatedBy
				}
				note := ""
				if ver.ChangeNote != nil {
					note = *ver.ChangeNote
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ver.Version, ver.CreatedAt.Format("2006-01-02 15:04:05"), createdBy, note)
			}
			_ = w.Flush()

			fmt.Printf("total: %d\n", total)
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	_ = command.MarkFlagRequired("content-id")

	return command
}
