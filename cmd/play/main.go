package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	app "github.com/rocketscienceinc/tictactoe-arena/internal"
	"github.com/rocketscienceinc/tictactoe-arena/internal/ai"
	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

const (
	msgInvalidInput = "Invalid input. Use '<row> <col>' or 'quit'."
	msgOutOfRange   = "Coordinates must be between 0 and 2."
	msgIgnored      = "Move ignored. Cell is occupied or game already finished."
	msgGameOver     = "Game over."
	msgBye          = "Bye."
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yml, environment only when empty")
	mark := flag.String("mark", tictactoe.PlayerX, "your mark (X|O)")
	starting := flag.String("start", "", "who moves first (X|O), random when empty")
	modelPath := flag.String("model", "", "artifact path for the file store, config value when empty")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *modelPath != "" {
		conf.Model.Store = config.ModelStoreFile
		conf.Model.Path = *modelPath
	}

	// the log would interleave with the board on stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine := ai.NewEngine(logger, loadModel(logger, conf), ai.NewSearcher(tictactoe.DefaultPlayers))

	game, err := entity.NewGame(tictactoe.DefaultPlayers, strings.ToUpper(*starting))
	if err != nil {
		fmt.Fprintf(os.Stderr, "game: %v\n", err)
		os.Exit(1)
	}

	human := strings.ToUpper(*mark)
	if !tictactoe.DefaultPlayers.Has(human) {
		fmt.Fprintf(os.Stderr, "mark must be X or O, got %q\n", *mark)
		os.Exit(1)
	}

	play := newConsole(os.Stdin, termenv.NewOutput(os.Stdout), service.NewBotService(engine), game, human)
	if err = play.run(); err != nil {
		fmt.Fprintf(os.Stderr, "play: %v\n", err)
		os.Exit(1)
	}
}

func loadModel(logger *slog.Logger, conf *config.Config) *ai.QModel {
	ctx := context.Background()

	repo, closeRepo, err := app.NewModelRepository(ctx, conf)
	if err != nil {
		logger.Warn("model store unavailable, playing by search", "error", err)
		return nil
	}
	defer closeRepo()

	model, err := repo.Load(ctx)
	if err != nil {
		logger.Warn("could not load model, playing by search", "error", err)
		return nil
	}

	return model
}

type console struct {
	in    *bufio.Scanner
	out   *termenv.Output
	bot   service.BotService
	game  *entity.Game
	human string
}

func newConsole(in io.Reader, out *termenv.Output, bot service.BotService, game *entity.Game, human string) *console {
	return &console{
		in:    bufio.NewScanner(in),
		out:   out,
		bot:   bot,
		game:  game,
		human: human,
	}
}

// run - alternates human input and engine replies until the game is over or the player leaves.
func (that *console) run() error {
	fmt.Fprintln(that.out, "Tic_Tac_Toe_game (CLI)")
	fmt.Fprintf(that.out, "You are %s. Commands: '<row> <col>' (0-2), 'quit'\n\n", that.human)
	that.render()

	for {
		if that.game.IsFinished() {
			that.finish()
			return nil
		}

		if that.game.Turn != that.human {
			if err := that.engineTurn(); err != nil {
				return err
			}

			continue
		}

		fmt.Fprint(that.out, "> ")
		if !that.in.Scan() {
			fmt.Fprintln(that.out, msgBye)
			return that.in.Err()
		}

		input := strings.ToLower(strings.TrimSpace(that.in.Text()))
		if input == "quit" {
			fmt.Fprintln(that.out, msgBye)
			return nil
		}

		that.humanTurn(input)
	}
}

func (that *console) humanTurn(input string) {
	row, col, ok := parseCoordinates(input)
	if !ok {
		fmt.Fprintln(that.out, msgInvalidInput)
		return
	}

	if !tictactoe.InRange(row, col) {
		fmt.Fprintln(that.out, msgOutOfRange)
		return
	}

	if err := that.game.MakeTurn(that.human, tictactoe.CellIndex(row, col)); err != nil {
		fmt.Fprintln(that.out, msgIgnored)
		return
	}

	that.render()
}

func (that *console) engineTurn() error {
	cell, err := that.bot.MakeTurn(that.game, that.game.Turn)
	if err != nil {
		return fmt.Errorf("engine turn failed: %w", err)
	}

	fmt.Fprintf(that.out, "AI played at (%d, %d).\n", cell.Row, cell.Col)
	that.render()

	return nil
}

func (that *console) finish() {
	if that.game.Status == entity.StatusWin {
		cells := make([]string, 0, len(that.game.Cells))
		for _, cell := range that.game.Cells {
			cells = append(cells, fmt.Sprintf("(%d, %d)", cell.Row, cell.Col))
		}

		fmt.Fprintf(that.out, "Win details: type=%s, cells=[%s]\n", that.game.Line, strings.Join(cells, ", "))
	}

	fmt.Fprintln(that.out, msgGameOver)
}

// render - prints the label and the board, winning cells highlighted.
func (that *console) render() {
	winning := make(map[tictactoe.Cell]bool, len(that.game.Cells))
	for _, cell := range that.game.Cells {
		winning[cell] = true
	}

	fmt.Fprintln(that.out, that.out.String(that.game.Label).Bold().String())

	rows := that.game.Board.Rows()
	for r := range rows {
		marks := make([]string, 0, tictactoe.BoardSize)
		for c, mark := range rows[r] {
			marks = append(marks, that.paint(mark, winning[tictactoe.Cell{Row: r, Col: c}]))
		}

		fmt.Fprintln(that.out, " "+strings.Join(marks, " | "))
		if r < tictactoe.BoardSize-1 {
			fmt.Fprintln(that.out, "---+---+---")
		}
	}

	fmt.Fprintln(that.out)
}

func (that *console) paint(mark string, highlight bool) string {
	if mark == tictactoe.EmptyCell {
		return " "
	}

	style := that.out.String(mark).Foreground(that.out.Color(markColor(mark)))
	if highlight {
		style = style.Bold().Underline()
	}

	return style.String()
}

func markColor(mark string) string {
	if mark == tictactoe.PlayerX {
		return "#E06C75"
	}

	return "#61AFEF"
}

// parseCoordinates - reads "<row> <col>" with non-negative integers.
func parseCoordinates(input string) (int, int, bool) {
	parts := strings.Fields(input)
	if len(parts) != 2 {
		return 0, 0, false
	}

	row, err := strconv.Atoi(parts[0])
	if err != nil || row < 0 || strings.HasPrefix(parts[0], "+") {
		return 0, 0, false
	}

	col, err := strconv.Atoi(parts[1])
	if err != nil || col < 0 || strings.HasPrefix(parts[1], "+") {
		return 0, 0, false
	}

	return row, col, true
}
