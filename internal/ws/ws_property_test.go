package ws

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

// After one broadcast the registry holds exactly the healthy connections and
// each of them received the message exactly once.
func TestHubPruningProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("broadcast keeps healthy connections and prunes failing ones", prop.ForAll(
		func(failing []bool, text string) bool {
			hub := NewHub(HubConfig{})

			conns := newFakeConns(len(failing), func(i int) bool { return failing[i] })
			for _, c := range conns {
				hub.registry.Add(c)
			}

			hub.Broadcast(model.LogMessage{Source: model.SourceOut, Text: text})

			healthy := 0
			for i, c := range conns {
				if failing[i] {
					if hub.registry.Contains(c) || !c.Closed() {
						return false
					}
					continue
				}
				healthy++
				got := c.Received()
				if len(got) != 1 || got[0] != "[OUT] "+text {
					return false
				}
			}
			return hub.ClientCount() == healthy
		},
		gen.SliceOf(gen.Bool()),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
