package main

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"famrecipes/models"

	"github.com/fsnotify/fsnotify"
	"gorm.io/gorm"
)

type labelDef struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

// seedLabels upserts the curated label set from the JSON file. Existing
// labels keep their id so recipe links survive color/order changes.
func seedLabels(db *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []labelDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, def := range defs {
			var label models.Label
			err := tx.Where("name = ?", def.Name).First(&label).Error
			switch {
			case err == nil:
				label.Color = def.Color
				label.Order = def.Order
				if err := tx.Save(&label).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&models.Label{Name: def.Name, Color: def.Color, Order: def.Order}).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
}

// watchLabels re-seeds the label set whenever the file changes. Events are
// debounced because editors emit several per save.
func watchLabels(db *gorm.DB, path string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("label watcher unavailable: %v", err)
		return
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		log.Printf("label watcher: %v", err)
		return
	}
	log.Printf("Watching %s for label changes (debounced) ...", path)

	target := filepath.Base(path)
	pending := false
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = true
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("label watcher: %v", err)
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			if err := seedLabels(db, path); err != nil {
				log.Printf("label reload failed: %v", err)
			} else {
				log.Printf("labels reloaded from %s", path)
			}
		}
	}
}
