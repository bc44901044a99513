package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Listen   string   `koanf:"listen"`
	Database Database `koanf:"db"`
	Sync     Sync     `koanf:"sync"`
	Source   Source   `koanf:"source"`
}

type Database struct {
	Path string `koanf:"path"`
}

type Sync struct {
	// IntervalMinutes is the period of the fallback reconciliation trigger.
	IntervalMinutes int `koanf:"intervalminutes"`
	// HorizonHours bounds how far ahead upstream events are fetched.
	HorizonHours int `koanf:"horizonhours"`
	// Calendars is the initial selected-calendar-id set.
	Calendars []string `koanf:"calendars"`
}

type Source struct {
	// Type selects the event source implementation: "google" or "ics".
	Type   string   `koanf:"type"`
	Google Google   `koanf:"google"`
	ICS    []ICSUrl `koanf:"ics"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	RefreshToken string `koanf:"refreshtoken"`
}

type ICSUrl struct {
	Id  string `koanf:"id"`
	Url string `koanf:"url"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Listen: ":8484",
		Database: Database{
			Path: "./wekker.db",
		},
		Sync: Sync{
			IntervalMinutes: 5,
			HorizonHours:    48,
		},
		Source: Source{
			Type: "ics",
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "WEKKER_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "WEKKER_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
