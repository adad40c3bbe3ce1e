package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"github.com/MinoruSoga/tsunaguma-sub006/app/repository"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/cache"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/config"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/database"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/env"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/jobqueue"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/promocode"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/statistics"
)

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	cfg, err := config.LoadPromoCodeConfig()
	if err != nil {
		log.Fatalf("Invalid promo code configuration: %v", err)
	}

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	generator := promocode.NewGenerator(cfg, nil)
	allocator := promocode.NewAllocator(repos.PromoCode)
	replenisher := promocode.NewReplenisher(repos.PromoCode, repos.Discount, generator, queue, cfg)
	issuer := promocode.NewIssuer(db, allocator, repos.Discount, replenisher)

	queue.RegisterProcessor(jobqueue.JobTypePromoCodeGeneration, replenisher)
	manager.SetPoolCheck(replenisher.CheckAndSchedule)

	if len(os.Args) > 1 {
		runCommand(os.Args[1:], repos, issuer, replenisher)
		return
	}

	manager.Start()
	log.Infof("[Tsunaguma] Promo code service running (target=%d, threshold=%d, cap=%d)",
		cfg.TargetTotal, cfg.Threshold, cfg.MaxTotal)

	// Make sure the pool is filled before the first allocation arrives.
	if err := replenisher.CheckAndSchedule(); err != nil {
		log.Errorf("[Tsunaguma] Initial pool check failed: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Infof("[Tsunaguma] Received %s, shutting down", sig)
	manager.Stop()
}

// runCommand handles the one-shot operational commands
func runCommand(args []string, repos *repository.Repositories, issuer *promocode.Issuer, replenisher *promocode.Replenisher) {
	switch args[0] {
	case "register":
		if len(args) < 3 {
			log.Fatal("Usage: tsunaguma register <name> <slug>")
		}
		store := &models.Store{
			Name:   args[1],
			Slug:   args[2],
			Status: models.StoreStatusPending,
		}
		if err := repos.Store.Create(store); err != nil {
			log.Fatalf("Store registration failed: %v", err)
		}
		fmt.Printf("Registered store %d (%s)\n", store.ID, store.Slug)

		// Issuance runs detached; the registration above is already committed
		// and stands whatever happens next. Wait for the attempt so its log
		// output lands before the process exits.
		<-issuer.IssueAsync(store.ID)

	case "issue":
		if len(args) < 2 {
			log.Fatal("Usage: tsunaguma issue <store-id>")
		}
		storeID, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			log.Fatalf("Invalid store ID %q: %v", args[1], err)
		}
		discount, err := issuer.IssueToStore(uint(storeID))
		if err != nil {
			log.Fatalf("Issuance failed: %v", err)
		}
		fmt.Printf("Issued promo code %s to store %d (discount %d)\n", discount.Code, storeID, discount.ID)

	case "check":
		if err := replenisher.CheckAndSchedule(); err != nil {
			log.Fatalf("Pool check failed: %v", err)
		}
		fmt.Println("Pool check done")

	case "stats":
		stats := statistics.GetPoolStatistics()
		fmt.Printf("Pool: %d total, %d available, %d assigned\n",
			stats.TotalCodes, stats.AvailableCodes, stats.AssignedCodes)
		fmt.Printf("Issued today: %d, allocated: %d, exhausted: %d\n",
			stats.TodayIssued, stats.AllocatedTotal, stats.ExhaustedTotal)

	default:
		fmt.Println("Usage: tsunaguma [register <name> <slug>|issue <store-id>|check|stats]")
		os.Exit(1)
	}
}
