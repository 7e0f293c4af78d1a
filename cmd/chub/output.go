package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"chub/internal/models"

	"gopkg.in/yaml.v3"
)

type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "text", "json", "yaml":
		return &printer{format: format, w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func (p *printer) print(v any) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so keys match the wire names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	return p.text(v)
}

func (p *printer) text(v any) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	switch v := v.(type) {
	case models.User:
		fmt.Fprintf(tw, "ID:\t%d\nUsername:\t%s\nEmail:\t%s\nPosts:\t%d\n", v.ID, v.Username, v.Email, v.PostCount)
		if v.Bio != "" {
			fmt.Fprintf(tw, "Bio:\t%s\n", v.Bio)
		}
	case models.Post:
		writePost(tw, v)
	case []models.Post:
		if len(v) == 0 {
			fmt.Fprintln(tw, "No posts.")
		}
		for _, post := range v {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", post.ID, post.Title, postFlags(post))
		}
	case []models.SavedPost:
		if len(v) == 0 {
			fmt.Fprintln(tw, "No saved posts.")
		}
		for _, sp := range v {
			title := ""
			if sp.Post != nil {
				title = sp.Post.Title
			}
			fmt.Fprintf(tw, "%d\t%s\tsaved %s\n", sp.PostID, title, sp.CreatedAt.Format("2006-01-02"))
		}
	case models.Comment:
		writeComment(tw, v, "")
	case []models.Comment:
		if len(v) == 0 {
			fmt.Fprintln(tw, "No comments.")
		}
		for _, c := range v {
			writeComment(tw, c, "")
		}
	case models.PrayerRequest:
		fmt.Fprintf(tw, "%d\t%s\n", v.ID, v.Content)
	case []models.PrayerRequest:
		if len(v) == 0 {
			fmt.Fprintln(tw, "No prayer requests.")
		}
		for _, pr := range v {
			fmt.Fprintf(tw, "%d\t%s\n", pr.ID, pr.Content)
		}
	case models.UploadResponse:
		fmt.Fprintln(tw, v.URL)
	case models.LikeResponse:
		fmt.Fprintf(tw, "%s\tlikes=%d\tliked=%t\n", v.Message, v.Likes, v.IsLiked)
	default:
		fmt.Fprintln(tw, v)
	}
	return tw.Flush()
}

func writePost(w io.Writer, post models.Post) {
	fmt.Fprintf(w, "ID:\t%d\nTitle:\t%s\n", post.ID, post.Title)
	if post.User != nil {
		fmt.Fprintf(w, "Author:\t%s\n", post.User.Username)
	}
	fmt.Fprintf(w, "Likes:\t%d\nComments:\t%d\nStatus:\t%s\n", post.Likes, post.CommentCount, postFlags(post))
	if post.ImageURL != "" {
		fmt.Fprintf(w, "Image:\t%s\n", post.ImageURL)
	}
	if post.LinkURL != "" {
		fmt.Fprintf(w, "Link:\t%s\n", post.LinkURL)
	}
	if len(post.Tags) > 0 {
		fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(post.Tags, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", post.Content)
}

func postFlags(post models.Post) string {
	var flags []string
	flags = append(flags, fmt.Sprintf("♥ %d", post.Likes))
	if post.IsLiked {
		flags = append(flags, "liked")
	}
	if post.IsSaved {
		flags = append(flags, "saved")
	}
	return strings.Join(flags, " ")
}

func writeComment(w io.Writer, c models.Comment, indent string) {
	author := "unknown"
	if c.User != nil {
		author = c.User.Username
	}
	liked := ""
	if c.IsLiked {
		liked = " liked"
	}
	fmt.Fprintf(w, "%s[%d] %s:\t%s\t♥ %d%s\n", indent, c.ID, author, c.Content, c.Likes, liked)
	for _, r := range c.Replies {
		writeComment(w, r, indent+"  ")
	}
}
