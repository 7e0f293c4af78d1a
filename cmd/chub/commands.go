package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"chub/internal/app"
	"chub/internal/hooks"
	"chub/internal/models"
	"chub/internal/validation"
)

type env struct {
	app    *app.App
	out    *printer
	stderr io.Writer
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// reported wraps a mutation error the notifier has already shown.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

func mutated(err error) error {
	if err == nil {
		return nil
	}
	return reported{err}
}

// parseArgs parses flags interspersed with positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usageError{err.Error()}
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func newFlags(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parseID(raw, what string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, usageError{fmt.Sprintf("invalid %s %q", what, raw)}
	}
	return uint(n), nil
}

func needArgs(pos []string, n int, what string) error {
	if len(pos) < n {
		return usageError{"missing " + what}
	}
	return nil
}

// show prints a query result or returns its error.
func show[T any](e *env, res hooks.Result[T]) error {
	if res.Idle {
		return errors.New("You must be logged in to view this")
	}
	if res.Err != nil {
		if res.Message == "" {
			return res.Err
		}
		return errors.New(res.Message)
	}
	return e.out.print(res.Data)
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("login", e)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CHUB_PASSWORD"), "account password (or CHUB_PASSWORD)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	out, err := e.app.Hooks.Auth.Login(ctx, models.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		return mutated(err)
	}
	return e.out.print(out.User)
}

func cmdRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlags("register", e)
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CHUB_PASSWORD"), "account password (or CHUB_PASSWORD)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	user, err := e.app.Hooks.Auth.Register(ctx, models.RegisterRequest{Username: *username, Email: *email, Password: *password})
	if err != nil {
		return mutated(err)
	}
	return e.out.print(user)
}

func cmdLogout(ctx context.Context, e *env, _ []string) error {
	return mutated(e.app.Hooks.Auth.Logout(ctx))
}

func cmdWhoami(ctx context.Context, e *env, _ []string) error {
	return show(e, e.app.Hooks.Auth.CurrentUser().Fetch(ctx))
}

func pageFlags(fs *flag.FlagSet) (page, limit *int) {
	return fs.Int("page", 1, "page number"), fs.Int("limit", 20, "page size")
}

func cmdFeed(ctx context.Context, e *env, args []string) error {
	fs := newFlags("feed", e)
	page, limit := pageFlags(fs)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	return show(e, e.app.Hooks.Posts.List(*page, *limit).Fetch(ctx))
}

func cmdSaved(ctx context.Context, e *env, _ []string) error {
	return show(e, e.app.Hooks.SavedPosts.List().Fetch(ctx))
}

func cmdPost(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError{"missing subcommand"}
	}
	sub, args := args[0], args[1:]
	posts := e.app.Hooks.Posts
	inter := e.app.Hooks.Interactions

	fs := newFlags("post "+sub, e)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body")
	image := fs.String("image", "", "image URL")
	link := fs.String("link", "", "link URL")
	tags := fs.String("tags", "", "comma separated tags")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	if sub == "mine" {
		return show(e, posts.MyPosts(ctx))
	}
	if sub == "create" {
		post, err := posts.Create(ctx, models.CreatePostRequest{
			Title: *title, Content: *content, ImageURL: *image, LinkURL: *link, Tags: validation.ParseTags(*tags),
		})
		if err != nil {
			return mutated(err)
		}
		return e.out.print(post)
	}

	if err := needArgs(pos, 1, "id"); err != nil {
		return err
	}
	id, err := parseID(pos[0], "id")
	if err != nil {
		return err
	}

	switch sub {
	case "get":
		return show(e, posts.Get(id).Fetch(ctx))
	case "user":
		return show(e, posts.UserPosts(id).Fetch(ctx))
	case "update":
		post, err := posts.Update(ctx, id, models.UpdatePostRequest{
			Title: *title, Content: *content, ImageURL: *image, LinkURL: *link, Tags: validation.ParseTags(*tags),
		})
		if err != nil {
			return mutated(err)
		}
		return e.out.print(post)
	case "delete":
		return mutated(posts.Delete(ctx, id))
	case "like", "unlike":
		like := inter.LikePost
		if sub == "unlike" {
			like = inter.UnlikePost
		}
		res, err := like(ctx, id)
		if err != nil {
			return mutated(err)
		}
		return e.out.print(res)
	case "save":
		return mutated(inter.SavePost(ctx, id))
	case "unsave":
		return mutated(inter.UnsavePost(ctx, id))
	default:
		return usageError{"unknown subcommand " + sub}
	}
}

func cmdComments(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError{"missing subcommand"}
	}
	sub, args := args[0], args[1:]
	comments := e.app.Hooks.Comments

	fs := newFlags("comments "+sub, e)
	page, limit := pageFlags(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := needArgs(pos, 1, "id"); err != nil {
		return err
	}
	id, err := parseID(pos[0], "id")
	if err != nil {
		return err
	}
	text := strings.Join(pos[1:], " ")

	switch sub {
	case "list":
		return show(e, comments.List(id, *page, *limit).Fetch(ctx))
	case "add":
		c, err := comments.Create(ctx, models.CreateCommentRequest{PostID: id, Content: text})
		if err != nil {
			return mutated(err)
		}
		return e.out.print(c)
	case "reply":
		if err := needArgs(pos, 2, "parent comment id"); err != nil {
			return err
		}
		parent, err := parseID(pos[1], "parent comment id")
		if err != nil {
			return err
		}
		c, err := comments.Reply(ctx, id, parent, strings.Join(pos[2:], " "))
		if err != nil {
			return mutated(err)
		}
		return e.out.print(c)
	case "edit":
		c, err := comments.Update(ctx, id, text)
		if err != nil {
			return mutated(err)
		}
		return e.out.print(c)
	case "delete":
		return mutated(comments.Delete(ctx, id))
	case "like", "unlike":
		like := comments.Like
		if sub == "unlike" {
			like = comments.Unlike
		}
		res, err := like(ctx, id)
		if err != nil {
			return mutated(err)
		}
		return e.out.print(res)
	default:
		return usageError{"unknown subcommand " + sub}
	}
}

func cmdPrayers(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError{"missing subcommand"}
	}
	sub, args := args[0], args[1:]
	prayers := e.app.Hooks.PrayerRequests

	fs := newFlags("prayers "+sub, e)
	limit := fs.Int("limit", hooks.DefaultPrayerLimit, "number of requests")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	switch sub {
	case "random":
		return show(e, prayers.Random(*limit).Fetch(ctx))
	case "submit":
		pr, err := prayers.Submit(ctx, strings.Join(pos, " "))
		if err != nil {
			return mutated(err)
		}
		return e.out.print(pr)
	default:
		return usageError{"unknown subcommand " + sub}
	}
}

func cmdUpload(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError{"missing file"}
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := e.app.Hooks.Uploads.UploadImage(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return mutated(err)
	}
	return e.out.print(models.UploadResponse{URL: url})
}
