package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"github.com/hoangnm-dev/gametopup_be/internal/config"
	"github.com/hoangnm-dev/gametopup_be/internal/db"
	"github.com/hoangnm-dev/gametopup_be/internal/handlers"
	"github.com/hoangnm-dev/gametopup_be/internal/middleware"
	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/notify"
	"github.com/hoangnm-dev/gametopup_be/internal/services/deposits"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.GamePackage{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Deposit{},
		&models.CryptoDeposit{},
		&models.Order{},
		&models.OrderStatusLog{},
	); err != nil {
		log.Fatal(err)
	}

	var notifier notify.Notifier = notify.Nop{}
	rdb := notify.NewRedis()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unavailable, notifications disabled: %v", err)
	} else {
		notifier = notify.NewRedisNotifier(rdb)
	}

	walletSvc := wallet.NewWalletService(gdb)
	refundSvc := orders.NewRefundService(walletSvc)
	orderSvc := orders.NewOrderService(gdb, walletSvc, refundSvc, notifier, cfg.AccountSecretKey)
	depositSvc := deposits.NewDepositService(gdb, walletSvc, notifier, cfg.USDTAddress)
	cryptoSvc := deposits.NewCryptoDepositService(gdb, walletSvc, orderSvc, notifier, cfg.USDTAddress)

	// Stale pending_payment orders are swept on a schedule. Each sweep
	// re-checks status under lock, so a concurrent payment wins.
	expiry := time.Duration(cfg.OrderExpiryHours) * time.Hour
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			n, err := orderSvc.CancelExpired(context.Background(), expiry)
			if err != nil {
				log.Printf("order expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("order expiry sweep: canceled %d stale orders", n)
			}
		}
	}()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	catalogH := &handlers.CatalogHandler{DB: gdb}
	walletH := &handlers.WalletHandler{DB: gdb, Wallet: walletSvc}
	orderH := &handlers.OrderHandler{Orders: orderSvc, DepositAddress: cfg.USDTAddress}
	depositH := &handlers.DepositHandler{Deposits: depositSvc, Crypto: cryptoSvc}
	adminH := &handlers.AdminHandler{Deposits: depositSvc, Crypto: cryptoSvc, Orders: orderSvc}

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/games", catalogH.ListGames)
	api.Get("/games/:slug", catalogH.GetGame)

	// protected (JWT)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", authH.Me)

	protected.Get("/wallet", walletH.Get)
	protected.Get("/wallet/history", walletH.History)

	protected.Post("/deposits", depositH.Submit)
	protected.Get("/deposits", depositH.List)
	protected.Post("/crypto-deposits", depositH.SubmitCrypto)
	protected.Get("/crypto-deposits", depositH.ListCrypto)

	protected.Post("/orders", orderH.Create)
	protected.Get("/orders", orderH.List)
	protected.Get("/orders/:orderId", orderH.Get)
	protected.Post("/orders/:orderId/pay", orderH.Pay)
	protected.Post("/orders/:orderId/cancel", orderH.Cancel)

	// admin only
	admin := protected.Group("/admin", middleware.RequireRoles("admin"))

	admin.Get("/deposits/pending", adminH.ListPendingDeposits)
	admin.Post("/deposits/:id/confirm", adminH.ConfirmDeposit)
	admin.Post("/deposits/:id/reject", adminH.RejectDeposit)
	admin.Post("/deposits/confirm-batch", adminH.ConfirmDepositsBatch)
	admin.Post("/deposits/reject-batch", adminH.RejectDepositsBatch)

	admin.Get("/crypto-deposits/pending", adminH.ListPendingCryptoDeposits)
	admin.Post("/crypto-deposits/:id/confirm", adminH.ConfirmCryptoDeposit)
	admin.Post("/crypto-deposits/:id/reject", adminH.RejectCryptoDeposit)

	admin.Post("/orders/:orderId/processing", adminH.MarkOrderProcessing)
	admin.Post("/orders/:orderId/complete", adminH.MarkOrderCompleted)
	admin.Post("/orders/:orderId/cancel", adminH.CancelOrder)
	admin.Post("/orders/cancel-batch", adminH.BulkCancelOrders)

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
