package core

// Linked components.  Each registers itself from init().
import (
	_ "github.com/yanizio/relay/components/admin"
	_ "github.com/yanizio/relay/components/apiv1"
	_ "github.com/yanizio/relay/components/auth"
	_ "github.com/yanizio/relay/components/home"
	_ "github.com/yanizio/relay/components/pages"
	_ "github.com/yanizio/relay/components/stats"
	_ "github.com/yanizio/relay/components/upload"
	_ "github.com/yanizio/relay/components/users"
)
