package loaderdata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

var photonews = &models.Bundle{Name: "photonews", BuildDirectory: "/b/photonews"}

func newsDescriptor() *models.BuildDescriptor {
	return &models.BuildDescriptor{
		Buildfile: "models/news.js",
		Name:      "news",
		Builds: map[string]models.BuildConfig{
			"news-model": {Name: "news-model", Requires: []string{"model"}, Affinity: models.AffinityClient},
		},
	}
}

func mixedDescriptors() []*models.BuildDescriptor {
	return []*models.BuildDescriptor{
		newsDescriptor(),
		{
			Buildfile: "build.json",
			Builds: map[string]models.BuildConfig{
				"photos":      {Name: "photos", Requires: []string{"node", "io", "node"}},
				"photos-srv":  {Name: "photos-srv", Affinity: models.AffinityServer},
				"photos-both": {Name: "photos-both", Requires: []string{"json"}, Affinity: models.AffinityCommon},
				"photos-ui":   {Name: "photos-ui", Requires: []string{"photos", "node"}, Affinity: models.AffinityClient},
			},
		},
	}
}

func TestAggregateClientScenario(t *testing.T) {
	data := Aggregate(photonews, []*models.BuildDescriptor{newsDescriptor()}, ClientSelector)

	require.Equal(t, map[string]models.ModuleMeta{
		"news-model": {Group: "photonews", Requires: []string{"model"}, Affinity: models.AffinityClient},
	}, data.JSON)

	raw, err := json.Marshal(data.JSON)
	require.NoError(t, err)
	require.JSONEq(t, `{"news-model":{"group":"photonews","requires":["model"],"affinity":"client"}}`, string(raw))
}

func TestSelectorsPartitionTargets(t *testing.T) {
	descriptors := mixedDescriptors()
	server := Aggregate(photonews, descriptors, ServerSelector)
	client := Aggregate(photonews, descriptors, ClientSelector)

	total := 0
	for _, d := range descriptors {
		total += len(d.Builds)
	}
	require.Equal(t, total, len(server.JSON)+len(client.JSON))
	for name := range server.JSON {
		require.NotContains(t, client.JSON, name)
	}
	require.Contains(t, server.JSON, "photos")
	require.Contains(t, server.JSON, "photos-srv")
	require.Contains(t, server.JSON, "photos-both")
	require.Contains(t, client.JSON, "photos-ui")
	require.Contains(t, client.JSON, "news-model")
}

func TestAggregateIsDeterministic(t *testing.T) {
	first, err := json.Marshal(Aggregate(photonews, mixedDescriptors(), ServerSelector))
	require.NoError(t, err)
	for range 20 {
		again, err := json.Marshal(Aggregate(photonews, mixedDescriptors(), ServerSelector))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestAggregateKeepsRequiresVerbatim(t *testing.T) {
	descriptors := mixedDescriptors()
	data := Aggregate(photonews, descriptors, ServerSelector)
	require.Equal(t, []string{"node", "io", "node"}, data.JSON["photos"].Requires)
	require.Equal(t, []string{}, data.JSON["photos-srv"].Requires)
	require.Equal(t, models.AffinityNone, data.JSON["photos"].Affinity)

	data.JSON["photos"].Requires[0] = "changed"
	require.Equal(t, "node", descriptors[1].Builds["photos"].Requires[0])
}

func TestAggregateLaterDescriptorWins(t *testing.T) {
	first := &models.BuildDescriptor{Buildfile: "a.js", Builds: map[string]models.BuildConfig{
		"dup": {Name: "dup", Requires: []string{"a"}},
	}}
	second := &models.BuildDescriptor{Buildfile: "b.js", Builds: map[string]models.BuildConfig{
		"dup": {Name: "dup", Requires: []string{"b"}},
	}}
	data := Aggregate(photonews, []*models.BuildDescriptor{first, nil, second}, ServerSelector)
	require.Equal(t, []string{"b"}, data.JSON["dup"].Requires)
}

func TestWithLoaderModule(t *testing.T) {
	data := WithLoaderModule(&models.LoaderData{}, photonews, photonews.LoaderModuleName())
	require.Equal(t, models.ModuleMeta{
		Group:    "photonews",
		Requires: []string{},
		Affinity: models.AffinityClient,
	}, data.JSON["loader-photonews"])
}
