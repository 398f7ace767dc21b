package config

import (
	"time"
	"unsafe"

	json "github.com/json-iterator/go"
)

func init() {
	// durations are accepted both as nanoseconds and as time.ParseDuration strings
	json.RegisterTypeDecoderFunc("time.Duration", func(ptr unsafe.Pointer, iter *json.Iterator) {
		switch iter.WhatIsNext() {
		case json.StringValue:
			d, err := time.ParseDuration(iter.ReadString())
			if err != nil {
				iter.ReportError("decode duration", err.Error())
				return
			}

			*(*time.Duration)(ptr) = d
		default:
			*(*time.Duration)(ptr) = time.Duration(iter.ReadInt64())
		}
	})
}

var codec = json.ConfigCompatibleWithStandardLibrary

// FromJSON overlays the document on top of Default(). Fields missing in the document
// keep their default values.
func FromJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := codec.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
