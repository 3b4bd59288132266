package nlu

import (
	"log/slog"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// serviceRule pairs a keyword list with the catalog service it selects.
type serviceRule struct {
	service  models.Service
	keywords []string
}

// serviceRules is the ordered catalog table for service classification.
// More specific entries come before generic ones (zircon before the generic
// crown keywords, cosmetic filling before plain filling).
var serviceRules = []serviceRule{
	{models.ServiceZirconCrown, []string{"زركون", "زيركون", "زيركونيوم", "zircon"}},
	{models.ServicePorcelainCrown, []string{"بورسلين", "تلبيس", "تلبيسة", "تاج", "crown", "porcelain"}},
	{models.ServiceCosmeticFilling, []string{"حشوة تجميلية", "حشوه تجميليه", "تجميلية", "تجميليه", "cosmetic filling"}},
	{models.ServiceFilling, []string{"حشوة", "حشوه", "حشو", "filling"}},
	{models.ServiceExtraction, []string{"قلع", "خلع", "شلع", "اشلع", "extraction", "remove tooth"}},
	{models.ServiceWhitening, []string{"تبييض", "تبيض", "whitening", "bleaching"}},
	{models.ServiceCleaning, []string{"تنظيف", "تنضيف", "جير", "cleaning"}},
	{models.ServiceOrthodontics, []string{"تقويم", "braces", "orthodontic"}},
	{models.ServiceImplant, []string{"زراعة", "زرع", "غرسة", "implant"}},
}

// ClassifyService maps free text to a clinic service label, independent of
// intent. When no keyword matches it returns ServiceUnspecified; callers are
// expected to carry forward the session's previously tracked service in that
// case (sticky-topic behavior).
func ClassifyService(text string) models.Service {
	normalized := Normalize(text)
	for _, rule := range serviceRules {
		if containsAny(normalized, rule.keywords) {
			slog.Debug("ClassifyService matched", "service", rule.service)
			return rule.service
		}
	}
	return models.ServiceUnspecified
}

// serviceDisplayNames maps catalog services to their customer-facing Arabic
// labels used in prompts, confirmations and the price list.
var serviceDisplayNames = map[models.Service]string{
	models.ServiceZirconCrown:     "تلبيسة زركون",
	models.ServicePorcelainCrown:  "تلبيسة بورسلين",
	models.ServiceCosmeticFilling: "حشوة تجميلية",
	models.ServiceFilling:         "حشوة عادية",
	models.ServiceExtraction:      "قلع سن",
	models.ServiceWhitening:       "تبييض اسنان",
	models.ServiceCleaning:        "تنظيف اسنان",
	models.ServiceOrthodontics:    "تقويم اسنان",
	models.ServiceImplant:         "زراعة سن",
	models.ServiceUnspecified:     "خدمة عامة",
}

// ServiceDisplayName returns the customer-facing Arabic label for a service.
func ServiceDisplayName(service models.Service) string {
	if name, ok := serviceDisplayNames[service]; ok {
		return name
	}
	return string(service)
}
