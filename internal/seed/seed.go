// Package seed loads the sample catalog and an optional admin account.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/repository"
	"github.com/iliyamo/equipment-rental/internal/service"
	"github.com/iliyamo/equipment-rental/internal/utils"
)

// UserCreator is the part of the user store seeding needs.
type UserCreator interface {
	Create(ctx context.Context, u *model.User) error
}

// Admin describes the account created with the catalog.  An empty Email
// skips it.
type Admin struct {
	Email      string
	Password   string
	BcryptCost int
}

// Result counts what Run inserted and what already existed.
type Result struct {
	Created int
	Skipped int
	Admin   bool
}

func ptr[T any](v T) *T { return &v }

// Products is the sample catalog.  Every product carries a SKU so a second
// run skips the ones already present.
func Products() []service.ProductInput {
	return []service.ProductInput{
		{
			Name:              "Professional Camera Kit",
			Description:       "Professional DSLR camera kit for photography and videography projects. Includes camera body, lenses, tripod, lighting and carrying case.",
			SKU:               ptr("CAM001"),
			PricePerDay:       6500,
			Category:          "Photography",
			ImageURL:          ptr("https://images.unsplash.com/photo-1502920917128-1aa500764cbd?w=600&h=400&fit=crop"),
			QuantityAvailable: ptr(3),
			Specifications:    json.RawMessage(`{"Sensor":"Full-frame CMOS","Resolution":"24.2 MP","Video":"4K at 30fps","Weight":"3.2 kg (complete kit)","Condition":"Excellent"}`),
			Features:          json.RawMessage(`["Full-frame DSLR camera body","24-70mm f/2.8 lens","85mm f/1.8 portrait lens","Professional tripod","LED lighting kit","Protective carrying case"]`),
		},
		{
			Name:              "Power Drill Set",
			Description:       "Power drill set with bits and accessories for construction, renovation and DIY projects.",
			SKU:               ptr("TOOL001"),
			PricePerDay:       1800,
			Category:          "Tools",
			ImageURL:          ptr("https://images.unsplash.com/photo-1504148455328-c376907d081c?w=600&h=400&fit=crop"),
			QuantityAvailable: ptr(5),
			Specifications:    json.RawMessage(`{"Battery":"18V Lithium-ion","Chuck Size":"13mm","Torque":"65 Nm","Weight":"1.8 kg","Condition":"Excellent"}`),
			Features:          json.RawMessage(`["18V Lithium-ion battery","Variable speed trigger","20+1 torque settings","LED work light","Quick-change chuck","Durable carrying case"]`),
		},
		{
			Name:              "Gaming Laptop",
			Description:       "High-performance laptop for gaming, content creation and professional work.",
			SKU:               ptr("LAPTOP001"),
			PricePerDay:       8500,
			Category:          "Electronics",
			ImageURL:          ptr("https://images.unsplash.com/photo-1603302576837-37561b2e2302?w=600&h=400&fit=crop"),
			QuantityAvailable: ptr(2),
			Specifications:    json.RawMessage(`{"Processor":"Intel Core i7-12700H","Graphics":"RTX 4060 8GB","RAM":"16GB DDR5","Storage":"1TB NVMe SSD","Display":"15.6\" 144Hz","Condition":"Like New"}`),
			Features:          json.RawMessage(`["Intel Core i7 processor","RTX 4060 graphics card","16GB DDR5 RAM","1TB NVMe SSD","RGB backlit keyboard"]`),
		},
		{
			Name:              "DJ Mixer",
			Description:       "Multi-channel DJ mixer with effects for parties, events and professional performances.",
			SKU:               ptr("AUDIO001"),
			PricePerDay:       7200,
			Category:          "Audio",
			ImageURL:          ptr("https://images.unsplash.com/photo-1493225457124-a3eb161ffa5f?w=600&h=400&fit=crop"),
			QuantityAvailable: ptr(2),
			Specifications:    json.RawMessage(`{"Channels":"4 channels","Effects":"Built-in reverb, delay, filter","Connectivity":"USB, XLR, RCA","Weight":"3.5 kg","Condition":"Excellent"}`),
			Features:          json.RawMessage(`["4-channel mixer","Built-in effects","Crossfader with curve control","3-band EQ per channel","USB connectivity"]`),
		},
		{
			Name:              "DSLR Camera",
			Description:       "DSLR camera for enthusiasts and professionals. Includes standard lens, battery, charger and memory card.",
			SKU:               ptr("CAM002"),
			PricePerDay:       4800,
			Category:          "Photography",
			ImageURL:          ptr("https://images.unsplash.com/photo-1606983340126-99ab4feaa64a?w=600&h=400&fit=crop"),
			QuantityAvailable: ptr(4),
			Specifications:    json.RawMessage(`{"Sensor":"24MP APS-C CMOS","Lens":"18-55mm f/3.5-5.6","Video":"1080p at 60fps","Weight":"1.2 kg","Condition":"Excellent"}`),
			Features:          json.RawMessage(`["24MP APS-C sensor","18-55mm kit lens","Full HD video recording","Image stabilization","WiFi connectivity"]`),
		},
	}
}

// Run inserts the sample catalog and the admin account.  Existing products
// (same SKU) and an existing admin email are skipped, so Run is safe to
// repeat.
func Run(ctx context.Context, catalog *service.CatalogService, users UserCreator, admin Admin, log *slog.Logger) (Result, error) {
	const op = "seed.Run"
	var res Result
	for _, in := range Products() {
		p, err := catalog.CreateProduct(ctx, in)
		switch {
		case err == nil:
			res.Created++
			log.Debug("seeded product", slog.Uint64("product_id", p.ID), slog.String("sku", *in.SKU))
		case service.KindOf(err) == service.KindConflict:
			res.Skipped++
		default:
			return res, fmt.Errorf("%s: product %s: %w", op, in.Name, err)
		}
	}

	if admin.Email == "" {
		return res, nil
	}
	hash, err := utils.HashPassword(admin.Password, admin.BcryptCost)
	if err != nil {
		return res, fmt.Errorf("%s: hash admin password: %w", op, err)
	}
	u := model.User{Email: admin.Email, PasswordHash: hash, FullName: "Administrator", Role: model.RoleAdmin, IsActive: true}
	switch err := users.Create(ctx, &u); {
	case err == nil:
		res.Admin = true
	case errors.Is(err, repository.ErrEmailExists):
	default:
		return res, fmt.Errorf("%s: create admin: %w", op, err)
	}
	return res, nil
}
