package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/cheapeats-bot/internal/config"
	"github.com/raine/cheapeats-bot/internal/eats"
	"github.com/raine/cheapeats-bot/internal/llm"
	"github.com/raine/cheapeats-bot/internal/location"
	"github.com/raine/cheapeats-bot/internal/storage"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	priceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	dish := flag.String("dish", "", "dish to search for (required)")
	where := flag.String("location", "", "place to search around; detected from IP when empty")
	lat := flag.Float64("lat", 0, "search around these coordinates instead of detecting (with -lng)")
	lng := flag.Float64("lng", 0, "longitude for -lat")
	menu := flag.String("menu", "", "menu photo to read a price from")
	entry := flag.Int("entry", 0, "result number the menu photo belongs to")
	dbPath := flag.String("db", "", "SQLite database for the menu price cache")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *dish == "" || (*menu != "") != (*entry > 0) {
		fmt.Fprintf(os.Stderr, "Usage: %s -dish <dish> [-location <place> | -lat <lat> -lng <lng>] [-menu <image> -entry <n>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		os.Exit(1)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fail("invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gemini, err := llm.NewGemini(ctx, llm.SearchOptions{
		Model:     cfg.GeminiModel,
		MinRating: cfg.MinRating,
		RadiusKm:  cfg.SearchRadiusKm,
	}, nil)
	if err != nil {
		fail("failed to initialize gemini: %v", err)
	}

	session := eats.NewSession()
	attempt := session.BeginDetection()
	if *where != "" {
		session.SetLocationText(*where)
	} else {
		var detector location.Detector = location.NewIPDetector().WithTimeout(cfg.LocationTimeout)
		if *lat != 0 || *lng != 0 {
			detector = location.Static(eats.Coordinates{Latitude: *lat, Longitude: *lng})
		}
		resolver := location.NewResolver(detector, cfg.LocationTimeout)
		coords, err := resolver.Detect(ctx)
		if err != nil {
			session.CompleteDetection(attempt, nil, err)
			fail("%s", session.Err())
		}
		session.CompleteDetection(attempt, &coords, nil)
	}

	if err := eats.RunSearch(ctx, session, gemini, *dish); err != nil {
		fail("%s", session.Err())
	}
	printResults(session, cfg.MinRating)

	if *menu == "" {
		return
	}

	var vision llm.VisionProvider = gemini
	if *dbPath != "" {
		store, err := storage.NewSQLiteStore(*dbPath)
		if err != nil {
			fail("failed to open database: %v", err)
		}
		defer store.Close()
		vision = llm.NewCachedVision(gemini, store, cfg.PriceCacheTTL, nil)
	}

	rs := session.Result()
	if *entry > len(rs.Entries) {
		fail("there is no result number %d", *entry)
	}
	target := rs.Entries[*entry-1]

	image, err := os.ReadFile(*menu)
	if err != nil {
		fail("failed to read menu photo: %v", err)
	}

	fmt.Printf("\nReading the price of %s at %s...\n", *dish, target.Name)
	if err := eats.RunPriceUpdate(ctx, session, vision, target.ID, image, http.DetectContentType(image)); err != nil {
		fmt.Println(errorStyle.Render(session.Err()))
		session.ClearError()
	}
	fmt.Println()
	printResults(session, cfg.MinRating)
}

func printResults(s *eats.Session, minRating float64) {
	if msg := s.EmptyMessage(minRating); msg != "" {
		fmt.Println(msg)
		return
	}
	rs := s.Result()
	if rs == nil {
		return
	}
	log.Debug().Bool("ranked", eats.IsRanked(rs.Entries)).Int("results", len(rs.Entries)).Msg("printing results")

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s near %s", s.Dish(), s.SearchLocation())))
	for i, e := range rs.Entries {
		price := unknownStyle.Render("price unknown")
		if e.HasPrice() {
			price = priceStyle.Render(*e.Price)
		}
		status := "closed"
		if e.IsOpen {
			status = "open"
		}
		details := []string{status, strconv.FormatFloat(e.DistanceKm, 'f', -1, 64) + " km"}
		if e.TravelTime != "" {
			details = append(details, e.TravelTime)
		}
		fmt.Printf("%2d. %s  %s  (%s)\n", i+1, nameStyle.Render(e.Name), price, strings.Join(details, ", "))
	}
	if rs.Summary != "" {
		fmt.Println("\n" + rs.Summary)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, args...)))
	os.Exit(1)
}
