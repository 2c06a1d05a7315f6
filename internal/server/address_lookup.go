package server

import (
	"net/http"
	"strings"

	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/gin-gonic/gin"
)

type addressHandler struct {
	networks *network.Registry
}

func newAddressHandler(networks *network.Registry) *addressHandler {
	return &addressHandler{networks: networks}
}

// LookupAddress returns a contract address on the enabled network.
func (h *addressHandler) LookupAddress(c *gin.Context) {
	n, err := h.networks.Resolve(c.Query("network"))
	if err != nil {
		writeAPIError(c, http.StatusBadRequest, "unsupported network")
		return
	}
	contract := strings.ToLower(strings.TrimSpace(c.Query("contract")))
	resp := AddressLookupResponse{Contract: contract, Network: n.Name, ChainID: n.ChainID}
	switch contract {
	case "usdc":
		resp.Address = n.USDC.Hex()
	case "entrypoint", "entry_point":
		resp.Address = n.EntryPoint.Hex()
	default:
		writeAPIError(c, http.StatusBadRequest, "unsupported contract query")
		return
	}
	c.JSON(http.StatusOK, resp)
}
