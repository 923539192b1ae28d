// Dev/test client for dev/test/troubleshooting.
// Drives one report through the wizard against a live backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"eaiser/backendclient"
	"eaiser/capture"
	"eaiser/common"
	"eaiser/config"
	"eaiser/dashboard"
	eimage "eaiser/image"
	"eaiser/location"
	"eaiser/models"
	"eaiser/workflow"

	"github.com/apex/log"
)

type authorityFlags []models.Authority

func (a *authorityFlags) String() string {
	var parts []string
	for _, auth := range *a {
		parts = append(parts, auth.Name+":"+auth.Type)
	}
	return strings.Join(parts, ",")
}

func (a *authorityFlags) Set(v string) error {
	name, typ, ok := strings.Cut(v, ":")
	if !ok || name == "" || typ == "" {
		return fmt.Errorf("expected name:type, got %q", v)
	}
	*a = append(*a, models.Authority{Name: name, Type: typ})
	return nil
}

var (
	imagePath   = flag.String("image", "", "Photo to attach (JPEG, PNG, WebP, GIF or HEIC)")
	cameraURL   = flag.String("camera-url", "", "Snapshot URL to capture the photo from instead of -image")
	manual      = flag.Bool("manual", false, "Report without a photo")
	address     = flag.String("address", "", "Street address")
	zip         = flag.String("zip", "", "Zip code")
	lat         = flag.Float64("lat", 0, "Latitude, used with -lng to resolve the address")
	lng         = flag.Float64("lng", 0, "Longitude, used with -lat to resolve the address")
	accept      = flag.Bool("accept", false, "Accept the generated report")
	decline     = flag.String("decline", "", "Decline the generated report with this reason")
	showBoard   = flag.Bool("dashboard", false, "Print the issue dashboard and exit")
	authorities authorityFlags
)

func main() {
	flag.Var(&authorities, "authority", "Authority to notify as name:type (repeatable)")
	flag.Parse()

	cfg := config.Load()
	common.SetupLogging(cfg.LogLevel, "cli")
	backend := backendclient.New(cfg.BackendURL, cfg.RequestTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *showBoard {
		doDashboard(ctx, backend)
		return
	}
	if err := doReport(ctx, cfg, backend); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func doDashboard(ctx context.Context, backend *backendclient.Client) {
	view := dashboard.NewService(backend, nil, "").Load(ctx)
	if view.Fallback {
		log.Warn("Backend unavailable, showing demonstration data")
	}
	s := view.Summary
	log.Infof("Total %d, resolved %d, in progress %d, rejected %d", s.Total, s.Resolved, s.InProgress, s.Rejected)
	for _, issue := range s.Recent {
		log.WithFields(log.Fields{"status": issue.NormalizedStatus(), "date": issue.Date}).Info(issue.Title)
	}
}

func doReport(ctx context.Context, cfg *config.Config, backend *backendclient.Client) error {
	acquirer := eimage.NewAcquirer()
	ctl := workflow.New(backend, workflow.WithAcquirer(acquirer))
	defer ctl.Close()

	provider, status := location.NewProvider(cfg, &http.Client{Timeout: cfg.RequestTimeout})
	var opts []location.ResolverOption
	if *lat != 0 || *lng != 0 {
		opts = append(opts, location.WithLocator(location.StaticLocator{Coordinates: models.Coordinates{Lat: *lat, Lng: *lng}}))
	}
	resolver := location.NewResolver(provider, status, func(rec location.Record) {
		ctl.SetLocation(rec)
	}, append(opts, location.WithRateLimit(cfg.GeocodeRPS))...)

	log.Info("Step 1: evidence")
	switch {
	case *manual:
		if err := ctl.SetManual(true); err != nil {
			return err
		}
		if err := ctl.Next(); err != nil {
			return err
		}
	case *cameraURL != "":
		cam := capture.NewSession(capture.NewSnapshotDevice(*cameraURL), acquirer)
		defer cam.Close()
		if err := cam.Start(ctx); err != nil {
			return err
		}
		acquired, err := cam.Capture(ctx)
		if err != nil {
			return err
		}
		if err := ctl.AttachAcquired(acquired); err != nil {
			return err
		}
	case *imagePath != "":
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			return err
		}
		if err := ctl.AttachImage(ctx, *imagePath, data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of -image, -camera-url or -manual is required")
	}

	log.Info("Step 2: location")
	if *lat != 0 || *lng != 0 {
		if _, err := resolver.UseCurrentLocation(ctx); err != nil {
			log.Warnf("%v", err)
		}
	}
	if *address != "" {
		resolver.SetAddressText(*address)
	}
	if *zip != "" {
		resolver.SetZipText(*zip)
	}
	rec := resolver.Record()
	log.WithFields(log.Fields{"address": rec.Address, "zip": rec.ZipCode}).Info("Location")

	if err := ctl.Submit(ctx); err != nil {
		return err
	}
	snap := ctl.Snapshot()
	printReport(snap)

	log.Info("Step 3: review")
	if len(authorities) > 0 {
		ctl.Selector().SetSelected(authorities)
	}
	switch {
	case *decline != "":
		if err := ctl.Decline(ctx, *decline); err != nil {
			return err
		}
		printReport(ctl.Snapshot())
	case *accept:
		if err := ctl.Accept(ctx); err != nil {
			return err
		}
		log.Info(ctl.Snapshot().Notice)
	default:
		log.Info("Neither -accept nor -decline given, leaving the report for review")
	}
	ctl.Wait()
	return nil
}

func printReport(snap workflow.Snapshot) {
	r := snap.Report
	if r == nil {
		return
	}
	log.WithFields(log.Fields{
		"issue":      snap.IssueID,
		"type":       r.IssueOverview.IssueType,
		"severity":   r.IssueOverview.Severity,
		"confidence": r.IssueOverview.Confidence,
	}).Info(r.IssueOverview.SummaryExplanation)

	panel := snap.Panel
	switch panel.Mode {
	case workflow.PanelRecommended:
		for _, a := range panel.Recommended {
			log.Infof("Recommended authority: %s (%s)", a.Name, a.Type)
		}
	case workflow.PanelManualPrompt:
		log.Info("Low confidence, pick authorities manually with -authority")
	}
}
