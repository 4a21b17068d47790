package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sortirkopi/bean-order-api/pricing"
	"github.com/sortirkopi/bean-order-api/services"
)

// GetQuote handles GET /api/v1/pricing/quote?weight=30 - prices a weight without ordering
func GetQuote(c *gin.Context) {
	weight, err := pricing.ParseWeight(c.Query("weight"))
	if err != nil {
		respondError(c, err)
		return
	}

	quote, err := services.Get().Orders.Quote(weight)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quote,
	})
}

// GetPriceList handles GET /api/v1/pricing - the live tier table
func GetPriceList(c *gin.Context) {
	table := services.Get().Orders.PricingTable()

	tiers := make([]gin.H, 0, len(table.Brackets))
	for _, b := range table.Brackets {
		tier := gin.H{
			"tier":         b.Tier,
			"price_per_kg": b.PricePerKg,
		}
		if !b.Unbounded {
			tier["up_to_kg"] = b.UpToKg
		}
		tiers = append(tiers, tier)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"version":        table.Version,
			"minimum_weight": pricing.MinimumWeightKg,
			"tiers":          tiers,
		},
	})
}
