package server

import (
	"log"
	"net/http"
	"time"

	"github.com/0xPexy/petpay-backend/internal/auth"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the services behind the HTTP API. Transfers, Balances and
// Wallets may be nil when the deployment is not configured for them; their
// endpoints then answer SDK_CONFIG_FAILED.
type Dependencies struct {
	Networks  *network.Registry
	Repo      *store.Repository
	Auth      *auth.Service
	Transfers TransferService
	Balances  BalanceService
	Wallets   WalletService
	Hub       *EventHub
	Logger    *log.Logger
}

func NewRouter(d Dependencies) *gin.Engine {
	logf := func(format string, args ...any) {
		if d.Logger != nil {
			d.Logger.Printf(format, args...)
		}
	}
	r := gin.New()
	r.Use(recoverCritical(logf))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Repo.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "network": d.Networks.Default().Name})
	})

	addrH := newAddressHandler(d.Networks)
	transferH := newTransferHandler(d.Transfers)
	walletH := newWalletHandler(d.Networks, d.Balances, d.Wallets)
	txH := newTransactionHandler(d.Repo)

	api := r.Group("/api/v1", auth.Identity(d.Auth))
	{
		api.GET("/addresses", addrH.LookupAddress)
		api.POST("/transfer", transferH.Transfer)
		api.GET("/wallet", walletH.Handle)
		api.POST("/wallet", walletH.Handle)
		api.GET("/transactions", txH.List)
		api.GET("/transactions/:hash", txH.Get)
		if d.Hub != nil {
			api.GET("/stream/transactions", d.Hub.ServeWS)
		}
	}
	return r
}
