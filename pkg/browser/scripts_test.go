package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/widescreen/pkg/observe"
)

func TestObserverScript(t *testing.T) {
	script, err := observerScript([]Alias{{Selector: "div.bg-token-sidebar-surface-primary", Target: observe.TargetSidebar}})
	require.NoError(t, err)

	assert.Contains(t, script, `[{"selector":"div.bg-token-sidebar-surface-primary","target":"sidebar"}]`)
	assert.Contains(t, script, "window."+recordBinding+"(JSON.stringify(records))")
	assert.Contains(t, script, "window."+focusBinding+"()")
	assert.Contains(t, script, `kind: 'fullscreenchange'`)
	assert.Contains(t, script, `"data-color-scheme"`)
	for _, placeholder := range []string{"$ALIASES", "$ALIASVAR", "$ATTRIBUTES", "$RECORD", "$FOCUS", "$ROOT", "$RESIZE", "$CLICK"} {
		assert.NotContains(t, script, placeholder)
	}
}

func TestObserverScriptWithoutAliases(t *testing.T) {
	script, err := observerScript(nil)
	require.NoError(t, err)
	assert.Contains(t, script, "const defaultAliases = [];")
	assert.Contains(t, script, "window."+aliasesVar+" || defaultAliases")
	assert.Contains(t, script, "window !== window.top")
}

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []observe.Record
		wantErr bool
	}{
		{
			name:    "mutation batch",
			payload: `[{"kind":"attributes","target":"html","attribute":"class","added":[],"removed":[]},{"kind":"childList","target":"body","added":["wideScreen-btn"]}]`,
			want: []observe.Record{
				{Kind: observe.KindAttributes, Target: observe.TargetRoot, Attribute: "class", Added: []string{}, Removed: []string{}},
				{Kind: observe.KindChildList, Target: observe.TargetBody, Added: []string{"wideScreen-btn"}},
			},
		},
		{
			name:    "keydown",
			payload: `[{"kind":"keydown","target":"document","key":"F11"}]`,
			want:    []observe.Record{{Kind: observe.KindKeyDown, Target: observe.TargetDocument, Key: "F11"}},
		},
		{
			name:    "garbage",
			payload: `{"kind":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecords(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageSnippetsTakeOneArgument(t *testing.T) {
	// playwright passes a single serialized argument to each snippet
	for name, js := range map[string]string{
		"setStyle":      jsSetStyle,
		"insertButtons": jsInsertButtons,
		"setAttribute":  jsSetAttribute,
		"setColor":      jsSetColor,
		"notify":        jsNotify,
		"alert":         jsAlert,
	} {
		assert.True(t, strings.HasPrefix(js, "(["), "%s destructures an array argument", name)
	}
	for name, js := range map[string]string{
		"setAliases":    jsSetAliases,
		"removeElement": jsRemoveElement,
		"hasElement":    jsHasElement,
		"exists":        jsExists,
		"sidebarHidden": jsSidebarHidden,
	} {
		assert.False(t, strings.HasPrefix(js, "(["), "%s takes a plain argument", name)
	}
}
