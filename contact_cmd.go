package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigairlab/narrate/blog"
)

var (
	contactForm blog.ContactForm

	contactCmd = &cobra.Command{
		Use:   "contact",
		Short: "Send a message through the contact form",
		Long: paragraph(fmt.Sprintf("\n%s the site's team. Without --message the message is read from stdin.",
			keyword("Contact"))),
		Example: paragraph(`narrate contact --name Ada --email ada@example.com --phone "+44 20 7946 0000" --heard podcast --message "Hello"`),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newBlogClient()
			if err != nil {
				return err
			}
			return sendContact(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), client, contactForm)
		},
	}
)

func init() {
	contactCmd.Flags().StringVar(&contactForm.Name, "name", "", "your name")
	contactCmd.Flags().StringVar(&contactForm.Email, "email", "", "your email address")
	contactCmd.Flags().StringVar(&contactForm.Phone, "phone", "", "your phone number")
	contactCmd.Flags().StringVar(&contactForm.HowDidYouHear, "heard", "", "how you heard about us")
	contactCmd.Flags().StringVarP(&contactForm.Message, "message", "m", "", "message text")
}

func sendContact(ctx context.Context, in io.Reader, w io.Writer, client *blog.Client, f blog.ContactForm) error {
	if f.Message == "" {
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("unable to read message: %w", err)
		}
		f.Message = strings.TrimSpace(string(data))
	}
	s, err := client.Contact(ctx, f)
	if err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	fmt.Fprintf(w, "Message sent %s\n", subtle("("+s.ID+")"))
	return nil
}
