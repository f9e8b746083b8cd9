package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bigkaa/printhome/checkout-web/internal/service"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Изображения upload-сессии backend API",
	}
	cmd.AddCommand(newSessionLsCmd(), newSessionRmCmd())
	return cmd
}

// openSession загружает список изображений сессии token.
func openSession(cmd *cobra.Command, token string) (*service.SessionReconciler, error) {
	_, logger, client, err := loadClient()
	if err != nil {
		return nil, err
	}
	r := service.NewSessionReconciler(client, logger)
	if err := r.SetActiveToken(cmd.Context(), token); err != nil {
		r.Close()
		return nil, err
	}
	if st := r.State(); st.Error != "" {
		r.Close()
		return nil, errors.New(st.Error)
	}
	return r, nil
}

func newSessionLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls TOKEN",
		Short: "Показать изображения сессии",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			st := r.State()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTORED\tORIGINAL\tSIZE\tURL")
			for _, img := range st.Images {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					img.ID, img.StoredFilename, img.OriginalFilename,
					validation.FormatFileSize(img.FileSize), img.URL)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d image(s)\n", len(st.Images))
			return nil
		},
	}
}

func newSessionRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm TOKEN [FILE]",
		Short: "Удалить изображение или всю сессию",
		Long:  "С FILE (stored_filename или id) удаляется одно изображение, без него — сессия целиком.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 2 {
				if err := r.RemoveOne(cmd.Context(), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s, %d image(s) left\n", args[1], len(r.State().Images))
				return nil
			}

			if err := r.RemoveAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s removed\n", args[0])
			return nil
		},
	}
}
