package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"refdash/internal/analytics"
	"refdash/internal/directory"
	"refdash/internal/export"
	"refdash/internal/model"
	"refdash/internal/util"
)

func cmdBrowse() {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	a.run("browse", func() error {
		b := a.browser()
		if err := b.ChangePage(ctx, 1); err != nil {
			fmt.Println("error:", err)
		}
		printView(b.View())
		return repl(ctx, b)
	})
}

func replHelp() {
	fmt.Println("commands: page N | search Q | clear | expand ID | ref ID N | retry ID | filter STATUS | refresh | export FILE | help | quit")
}

func repl(ctx context.Context, b *directory.Browser) error {
	replHelp()
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return in.Err()
		}
		args := util.SplitFields(in.Text())
		if len(args) == 0 {
			continue
		}
		var err error
		switch args[0] {
		case "quit", "exit":
			return nil
		case "help":
			replHelp()
			continue
		case "page":
			var n int
			if n, err = intArg(args, 1); err == nil {
				err = b.ChangePage(ctx, n)
			}
		case "search":
			_, err = b.SearchNow(ctx, strings.Join(args[1:], " "))
		case "clear":
			b.ClearSearch()
		case "expand":
			if len(args) < 2 {
				err = fmt.Errorf("usage: expand ID")
				break
			}
			err = b.ToggleExpand(ctx, args[1])
		case "ref":
			var n int
			if len(args) < 3 {
				err = fmt.Errorf("usage: ref ID N")
				break
			}
			if n, err = intArg(args, 2); err == nil {
				err = b.ChangeReferralPage(ctx, args[1], n)
			}
		case "retry":
			if len(args) < 2 {
				err = fmt.Errorf("usage: retry ID")
				break
			}
			err = b.RetryReferrals(ctx, args[1])
		case "filter":
			status := "all"
			if len(args) > 1 {
				status = args[1]
			}
			err = b.SetStatusFilter(status)
		case "refresh":
			err = b.Refresh(ctx)
		case "export":
			if len(args) < 2 {
				err = fmt.Errorf("usage: export FILE")
				break
			}
			if err := exportView(args[1], b.View()); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("written", args[1])
			}
			continue
		default:
			replHelp()
			continue
		}
		if err != nil {
			fmt.Println("error:", err)
		}
		printView(b.View())
	}
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing number")
	}
	return strconv.Atoi(args[i])
}

func exportView(path string, v directory.View) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteUsers(f, v.Users())
}

func printView(v directory.View) {
	if v.AuthRequired {
		fmt.Println("! authentication required: run refdash login")
	}
	if v.SearchMode {
		switch {
		case v.Scanning:
			fmt.Printf("search %q: scanning...\n", v.Query)
		case v.SearchError != "":
			fmt.Printf("search %q failed: %s\n", v.Query, v.SearchError)
		case v.MatchPage > 0:
			fmt.Printf("search %q: %d match(es) on page %d (scan stops at the first page with a match)\n", v.Query, len(v.Rows), v.MatchPage)
		default:
			fmt.Printf("search %q: no matches in %d page(s)\n", v.Query, v.PagesScanned)
		}
	} else {
		fmt.Printf("page %d/%d  users=%d  tokens_earned=%s  filter=%s\n", v.Page, v.TotalPages, v.TotalUsers, v.TotalReferralTokensEarned.String(), v.StatusFilter)
		if v.Error != "" {
			fmt.Println("! page load failed, showing last page:", v.Error)
		}
	}
	for _, r := range v.Rows {
		marker := " "
		if r.Expandable {
			marker = "+"
			if r.Expanded {
				marker = "-"
			}
		}
		printUser(marker+" ", r.User)
		if !r.Expanded {
			continue
		}
		switch {
		case r.Loading:
			fmt.Println("    loading referrals...")
		case r.Error != "":
			fmt.Println("    ! referrals failed:", r.Error, "(retry", r.User.ID+")")
		case r.NoReferralsOnPage:
			fmt.Println("    no referrals found for this page")
		}
		for _, ref := range r.User.Referrals {
			printUser("      ", ref)
		}
		if r.Pagination != nil {
			fmt.Printf("    referrals %d, qualified %d, page %d/%d ", r.Pagination.TotalReferred, r.QualifiedReferrals, r.Pagination.CurrentPage, r.Pagination.TotalPages)
			printLinks(r.ReferralLinks)
		}
	}
	if !v.SearchMode {
		printLinks(v.PageLinks)
	}
	if len(v.StatusCounts) > 0 {
		parts := make([]string, 0, len(v.StatusCounts))
		for _, k := range analytics.SortedStatusKeys(v.StatusCounts) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, v.StatusCounts[k]))
		}
		fmt.Println("statuses:", strings.Join(parts, " "))
	}
}

func printUser(prefix string, u model.User) {
	fmt.Printf("%s%-44s refs=%-4d reward=%-10s status=%-12s social=%-5v referral=%-5v both=%v\n",
		prefix, u.WalletAddress, u.ReferralCount, u.RewardEarned.String(), u.RewardStatus,
		u.SocialTasksCompleted, u.ReferralTasksCompleted, u.HasCompletedBoth)
}

func printLinks(links []directory.PageLink) {
	if len(links) == 0 {
		fmt.Println()
		return
	}
	parts := make([]string, 0, len(links))
	for _, l := range links {
		switch {
		case l.Ellipsis:
			parts = append(parts, "…")
		case l.Current:
			parts = append(parts, "["+strconv.Itoa(l.Page)+"]")
		default:
			parts = append(parts, strconv.Itoa(l.Page))
		}
	}
	fmt.Println(strings.Join(parts, " "))
}
