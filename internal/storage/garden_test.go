package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/afroash/flaura/internal/models"
)

func fptr(v float64) *float64 { return &v }

func createSpace(t *testing.T, store *SQLStore, userID, tag string) *models.Space {
	t.Helper()

	space := &models.Space{Tag: tag, Color: "green", Icon: "leaf", UserID: userID}
	if err := store.CreateSpace(context.Background(), space); err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	return space
}

func createPlant(t *testing.T, store *SQLStore, spaceID, apiID string) *models.Plant {
	t.Helper()

	plant := &models.Plant{
		APIID:            apiID,
		SpaceID:          spaceID,
		Name:             "Monstera",
		IdealTemperature: fptr(22.5),
	}
	if err := store.CreatePlant(context.Background(), plant); err != nil {
		t.Fatalf("CreatePlant failed: %v", err)
	}
	return plant
}

func TestEnsureUser(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first, err := store.EnsureUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	second, err := store.EnsureUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("second EnsureUser failed: %v", err)
	}

	if first.ID != "user-1" || first.CreatedAt.IsZero() {
		t.Errorf("user = %+v", first)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestSpaces_Ownership(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	mine := createSpace(t, store, "alice", "Living room")
	createSpace(t, store, "alice", "Balcony")
	createSpace(t, store, "bob", "Office")

	if mine.ID == "" || mine.CreatedAt.IsZero() {
		t.Fatalf("space not initialised: %+v", mine)
	}

	spaces, err := store.ListSpaces(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSpaces failed: %v", err)
	}
	if len(spaces) != 2 {
		t.Fatalf("alice has %d spaces, want 2", len(spaces))
	}

	got, err := store.GetSpace(ctx, "alice", mine.ID)
	if err != nil {
		t.Fatalf("GetSpace failed: %v", err)
	}
	if got.Tag != "Living room" || got.Color != "green" || got.Icon != "leaf" {
		t.Errorf("space = %+v", got)
	}

	if _, err := store.GetSpace(ctx, "bob", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob GetSpace error = %v, want ErrNotFound", err)
	}
}

func TestPlants_CRUD(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	space := createSpace(t, store, "alice", "Kitchen")
	plant := createPlant(t, store, space.ID, "42")

	got, err := store.GetPlant(ctx, "alice", plant.ID)
	if err != nil {
		t.Fatalf("GetPlant failed: %v", err)
	}
	if got.APIID != "42" || got.IdealTemperature == nil || *got.IdealTemperature != 22.5 {
		t.Errorf("plant = %+v", got)
	}
	if got.IdealBrightness != nil {
		t.Errorf("IdealBrightness = %v, want nil", *got.IdealBrightness)
	}

	got.Name = "Monstera deliciosa"
	got.IdealBrightness = fptr(12350)
	got.ImageURL = "https://example.com/m.jpg"
	if err := store.UpdatePlantReference(ctx, got); err != nil {
		t.Fatalf("UpdatePlantReference failed: %v", err)
	}
	if err := store.SetPlantWatered(ctx, "alice", plant.ID, true); err != nil {
		t.Fatalf("SetPlantWatered failed: %v", err)
	}

	updated, err := store.GetPlant(ctx, "alice", plant.ID)
	if err != nil {
		t.Fatalf("GetPlant failed: %v", err)
	}
	if updated.Name != "Monstera deliciosa" || *updated.IdealBrightness != 12350 || !updated.Watered {
		t.Errorf("updated plant = %+v", updated)
	}

	if _, err := store.GetPlant(ctx, "bob", plant.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob GetPlant error = %v, want ErrNotFound", err)
	}
	if err := store.DeletePlant(ctx, "bob", plant.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob DeletePlant error = %v, want ErrNotFound", err)
	}

	if err := store.DeletePlant(ctx, "alice", plant.ID); err != nil {
		t.Fatalf("DeletePlant failed: %v", err)
	}
	if _, err := store.GetPlant(ctx, "alice", plant.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlant after delete error = %v, want ErrNotFound", err)
	}
}

func TestListPlants(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	kitchen := createSpace(t, store, "alice", "Kitchen")
	office := createSpace(t, store, "alice", "Office")
	createPlant(t, store, kitchen.ID, "1")
	createPlant(t, store, kitchen.ID, "2")
	createPlant(t, store, office.ID, "3")

	inKitchen, err := store.ListPlants(ctx, "alice", kitchen.ID)
	if err != nil {
		t.Fatalf("ListPlants failed: %v", err)
	}
	if len(inKitchen) != 2 {
		t.Errorf("kitchen has %d plants, want 2", len(inKitchen))
	}

	all, err := store.ListPlants(ctx, "alice", "")
	if err != nil {
		t.Fatalf("ListPlants failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("alice has %d plants, want 3", len(all))
	}

	none, err := store.ListPlants(ctx, "bob", kitchen.ID)
	if err != nil {
		t.Fatalf("ListPlants failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("bob sees %d plants", len(none))
	}
}

func TestDeleteSpace_Cascades(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	space := createSpace(t, store, "alice", "Kitchen")
	other := createSpace(t, store, "alice", "Office")
	createPlant(t, store, space.ID, "1")
	createPlant(t, store, space.ID, "2")
	kept := createPlant(t, store, other.ID, "3")

	if _, err := store.DeleteSpace(ctx, "bob", space.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob DeleteSpace error = %v, want ErrNotFound", err)
	}

	removed, err := store.DeleteSpace(ctx, "alice", space.ID)
	if err != nil {
		t.Fatalf("DeleteSpace failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d plants, want 2", removed)
	}

	all, err := store.ListPlants(ctx, "alice", "")
	if err != nil {
		t.Fatalf("ListPlants failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != kept.ID {
		t.Errorf("remaining plants = %+v", all)
	}

	stats, err := store.GetStorageStats(ctx)
	if err != nil {
		t.Fatalf("GetStorageStats failed: %v", err)
	}
	if stats.Spaces != 1 || stats.Plants != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCreatePlant_UnknownSpace(t *testing.T) {
	store := setupTestDB(t)

	plant := &models.Plant{APIID: "1", SpaceID: "does-not-exist"}
	if err := store.CreatePlant(context.Background(), plant); err == nil {
		t.Fatal("expected foreign key error")
	}
}
