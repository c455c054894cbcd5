package cli

import (
	"github.com/pressly/pgfixture"
	"github.com/pressly/pgfixture/pkg/dockermanage"
)

type upOutput struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Database string `json:"database"`
	Image    string `json:"image"`
}

func toUpOutput(c pgfixture.Config, image string) upOutput {
	return upOutput{
		URL:      c.URL(),
		Host:     c.Host(),
		Port:     c.Port(),
		User:     c.UserName(),
		Database: c.DatabaseName(),
		Image:    image,
	}
}

type listOutput struct {
	Containers []dockermanage.Summary `json:"containers"`
}

func toListOutput(all []dockermanage.Summary) listOutput {
	if all == nil {
		all = []dockermanage.Summary{}
	}
	return listOutput{Containers: all}
}

type pruneOutput struct {
	Removed int `json:"removed"`
}
