package e2e

import (
	"github.com/cucumber/godog"

	"github.com/RevenueScotland/sets-online-portal-sub000/e2e/steps/common"
	"github.com/RevenueScotland/sets-online-portal-sub000/e2e/steps/lbtt"
	"github.com/RevenueScotland/sets-online-portal-sub000/e2e/steps/slft"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	lbtt.RegisterSteps(ctx, tc)
	slft.RegisterSteps(ctx, tc)
}
