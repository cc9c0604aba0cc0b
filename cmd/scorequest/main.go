// Command scorequest reads the ScoreQuest leaderboard from a terminal.
//
//	scorequest [-api URL] leaderboard [-limit N]
//	scorequest [-api URL] player <address>
//	scorequest [-api URL] summary
//	scorequest [-api URL] token set <token> | token clear
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/scorequest/scorequest-desktop/internal/config"
	"github.com/scorequest/scorequest-desktop/internal/keystore"
	"github.com/scorequest/scorequest-desktop/internal/lbclient"
	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

const keyringService = "scorequest-desktop"

func main() {
	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	apiFlag := flag.String("api", cfg.Client.APIURL, "leaderboard API base URL")
	timeoutFlag := flag.Duration("timeout", cfg.Client.Timeout, "overall request timeout")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	client := lbclient.New(lbclient.Config{
		BaseURL:    *apiFlag,
		MaxRetries: uint64(cfg.Client.MaxRetries),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	args := flag.Args()
	switch args[0] {
	case "leaderboard", "top":
		err = runLeaderboard(ctx, client, args[1:])
	case "player":
		err = runPlayer(ctx, client, args[1:])
	case "summary":
		err = runSummary(ctx, client)
	case "token":
		err = runToken(*apiFlag, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-api URL] [-timeout D] <leaderboard [-limit N] | player <address> | summary | token set <token> | token clear>\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func runLeaderboard(ctx context.Context, client *lbclient.Client, args []string) error {
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	limit := fs.Int("limit", leaderboard.DefaultLimit, "number of entries (1-100)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Fetching leaderboard...")
	entries, err := client.Leaderboard(ctx, *limit)
	if err != nil {
		spinner.Fail("Leaderboard unavailable")
		return err
	}
	spinner.Success(fmt.Sprintf("%d players", len(entries)))

	if len(entries) == 0 {
		pterm.Info.Println("No scores yet. Be the first to play!")
		return nil
	}

	data := pterm.TableData{{"Rank", "Player", "Score", "Badge", "NFT"}}
	ranks := leaderboard.Ranks(entries)
	for i, e := range entries {
		rank := ranks[i]
		data = append(data, []string{
			strconv.Itoa(rank),
			leaderboard.ShortAddress(e.Address),
			strconv.Itoa(e.Score),
			leaderboard.Badge(rank, e.Score),
			nftMark(e.NFTMinted),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func runPlayer(ctx context.Context, client *lbclient.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("player: expected one wallet address")
	}
	p, err := client.PlayerStats(ctx, args[0])
	if lbclient.IsNotFound(err) {
		pterm.Warning.Printfln("%s is not on the leaderboard yet", leaderboard.ShortAddress(args[0]))
		return nil
	}
	if err != nil {
		return err
	}

	body := pterm.Sprintfln("Score: %s", pterm.LightCyan(p.Score)) +
		pterm.Sprintfln("Rank: #%d", p.Rank) +
		pterm.Sprintfln("Badge: %s", p.Badge) +
		pterm.Sprintfln("NFT: %s", nftMark(p.NFTMinted)) +
		pterm.Sprintf("Last update: %s", p.UpdatedAt.Local().Format(time.RFC1123))
	pterm.DefaultBox.
		WithTitle(pterm.LightYellow(leaderboard.ShortAddress(p.Address))).
		WithTitleTopCenter().
		WithHorizontalPadding(4).
		Println(body)
	return nil
}

func runSummary(ctx context.Context, client *lbclient.Client) error {
	s, err := client.Summary(ctx)
	if err != nil {
		return err
	}
	return pterm.DefaultTable.WithBoxed().WithData(pterm.TableData{
		{"Players", strconv.FormatInt(s.Players, 10)},
		{"NFTs minted", strconv.FormatInt(s.Minted, 10)},
		{"Top score", strconv.Itoa(s.TopScore)},
		{"Average score", s.AverageScore.StringFixed(2)},
	}).Render()
}

func runToken(server string, args []string) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	store := keystore.New(keyringService, filepath.Join(dir, "scorequest-desktop", "secrets.json"))

	switch {
	case len(args) == 2 && args[0] == "set":
		if err := store.SetSubmitToken(server, args[1]); err != nil {
			return err
		}
		pterm.Success.Printfln("Submit token saved for %s", server)
	case len(args) == 1 && args[0] == "clear":
		if err := store.DeleteSubmitToken(server); err != nil {
			return err
		}
		pterm.Success.Printfln("Submit token removed for %s", server)
	default:
		return fmt.Errorf("token: expected 'set <token>' or 'clear'")
	}
	return nil
}

func nftMark(minted bool) string {
	if minted {
		return pterm.LightGreen("minted")
	}
	return pterm.Gray("-")
}
