package invites

import (
	"context"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultFetchTimeout = 5 * time.Second

var ErrNotSeeded = errors.New("invite cache was not seeded")

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "invites")
}

// Cache attributes member joins of one guild to the invite they used by
// comparing invite use counts before and after the join
type Cache struct {
	sync.Mutex
	guildID      string
	source       platform.InviteSource
	snapshots    SnapshotStore
	fetchTimeout time.Duration
	now          func() time.Time

	seeded  bool
	uses    map[string]int
	inviter map[string]string
}

// NewCache returns an unseeded cache, $snapshots may be nil
func NewCache(guildID string, source platform.InviteSource, snapshots SnapshotStore) *Cache {
	return &Cache{
		guildID:      guildID,
		source:       source,
		snapshots:    snapshots,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		uses:         make(map[string]int),
		inviter:      make(map[string]string),
	}
}

func (c *Cache) canManageGuild() bool {
	guild, err := c.source.Guild(c.guildID)
	if err != nil {
		return false
	}
	member, err := c.source.Member(c.guildID, c.source.BotUserID())
	if err != nil {
		return false
	}
	return helpers.HasManageGuild(guild, member)
}

func (c *Cache) fetch(ctx context.Context) ([]*discordgo.Invite, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	return c.source.Invites(ctx, c.guildID)
}

// Seed loads the current use counts, it has to run once before Attribute.
// If discord cannot be asked the last persisted snapshot is used.
func (c *Cache) Seed(ctx context.Context) error {
	if !c.canManageGuild() {
		logger().WithField("GuildID", c.guildID).Debug("missing manage server permission, not seeding invites")
		return nil
	}

	invites, err := c.fetch(ctx)
	if err != nil {
		if c.snapshots == nil {
			return err
		}
		snapshot, ok, loadErr := c.snapshots.Load(c.guildID)
		if loadErr != nil || !ok {
			return err
		}
		c.Lock()
		c.merge(snapshot.Uses)
		c.seeded = true
		c.Unlock()
		logger().WithField("GuildID", c.guildID).Infof("seeded %d invites from snapshot after: %s", len(snapshot.Uses), err.Error())
		return nil
	}

	c.Lock()
	for _, invite := range invites {
		c.upsert(invite)
	}
	c.seeded = true
	c.Unlock()

	c.persist()
	return nil
}

func (c *Cache) Seeded() bool {
	c.Lock()
	defer c.Unlock()

	return c.seeded
}

// Uses returns the cached use count of $code
func (c *Cache) Uses(code string) (int, bool) {
	c.Lock()
	defer c.Unlock()

	uses, ok := c.uses[code]
	return uses, ok
}

// Inviter returns the user who created $code, if known
func (c *Cache) Inviter(code string) string {
	c.Lock()
	defer c.Unlock()

	return c.inviter[code]
}

// upsert never lowers a cached use count
func (c *Cache) upsert(invite *discordgo.Invite) {
	if cached, ok := c.uses[invite.Code]; !ok || invite.Uses > cached {
		c.uses[invite.Code] = invite.Uses
	}
	if invite.Inviter != nil {
		c.inviter[invite.Code] = invite.Inviter.ID
	}
}

func (c *Cache) merge(uses map[string]int) {
	for code, count := range uses {
		if cached, ok := c.uses[code]; !ok || count > cached {
			c.uses[code] = count
		}
	}
}

func (c *Cache) persist() {
	if c.snapshots == nil {
		return
	}
	c.Lock()
	uses := make(map[string]int, len(c.uses))
	for code, count := range c.uses {
		uses[code] = count
	}
	c.Unlock()

	err := c.snapshots.Save(models.InviteSnapshot{GuildID: c.guildID, Uses: uses, UpdatedAt: c.now()})
	helpers.RelaxLog(err, "persisting invites of "+c.guildID)
}

// Attribute guesses which invite $user joined with
func (c *Cache) Attribute(ctx context.Context, user *discordgo.User) (models.Attribution, error) {
	attribution, err := c.attribute(ctx, user)
	result := "unknown"
	switch attribution.Kind {
	case models.AttributionInvite:
		result = "invite"
	case models.AttributionAdmin:
		result = "admin"
	case models.AttributionVanity:
		result = "vanity"
	case models.AttributionNoPermission:
		result = "no_permission"
	}
	metrics.InviteAttributions.WithLabelValues(result).Inc()
	return attribution, err
}

func (c *Cache) attribute(ctx context.Context, user *discordgo.User) (models.Attribution, error) {
	if user != nil && user.Bot {
		return models.Attribution{Kind: models.AttributionAdmin, Code: models.InviteSentinelAdmin}, nil
	}
	if !c.canManageGuild() {
		return models.Attribution{Kind: models.AttributionNoPermission}, nil
	}
	if !c.Seeded() {
		return models.Attribution{}, ErrNotSeeded
	}

	invites, err := c.fetch(ctx)
	if err != nil {
		return models.Attribution{}, err
	}
	guild, err := c.source.Guild(c.guildID)
	if err != nil {
		return models.Attribution{}, err
	}
	attribution := c.compare(invites, guild.VanityURLCode != "")
	c.persist()
	return attribution, nil
}

// compare diffs $invites against the cache and updates it
func (c *Cache) compare(invites []*discordgo.Invite, hasVanity bool) models.Attribution {
	c.Lock()
	defer c.Unlock()

	changed := make([]string, 0)
	uncached := make([]*discordgo.Invite, 0)
	for _, invite := range invites {
		cached, ok := c.uses[invite.Code]
		if !ok {
			uncached = append(uncached, invite)
			continue
		}
		// stale responses may report lower counts, only an increase counts as use
		if invite.Uses > cached {
			changed = append(changed, invite.Code)
		}
	}
	for _, invite := range invites {
		c.upsert(invite)
	}

	if len(changed) == 1 {
		return models.Attribution{Kind: models.AttributionInvite, Code: changed[0]}
	}

	used := make([]string, 0)
	for _, invite := range uncached {
		if invite.Uses > 0 {
			used = append(used, invite.Code)
		}
	}
	if len(used) == 0 && len(changed) == 0 && hasVanity {
		return models.Attribution{Kind: models.AttributionVanity, Code: models.InviteSentinelVanity}
	}
	if len(used) == 1 && len(changed) == 0 {
		return models.Attribution{Kind: models.AttributionInvite, Code: used[0]}
	}
	return models.Attribution{Kind: models.AttributionUnknown}
}
