package sqlinline

// Schema lists the idempotent DDL applied at startup, in order.
var Schema = []string{
	QCreateBaseProducts,
	QCreateProductReferences,
	QCreatePromptTemplates,
	QCreateMockupJobs,
	QCreateMockupJobsIndexes,
	QCreateIntegrationTokens,
}

const QCreateBaseProducts = `--sql 0783f331-e9ad-40d1-b806-43908e539448
create table if not exists base_products (
    id bigserial primary key,
    name text not null,
    description text not null default '',
    image_ref text not null,
    image_mime text not null default '',
    parts text not null default '',
    constraints_text text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QCreateProductReferences = `--sql 754c340a-078d-43d9-baf1-543b432b52ea
create table if not exists product_references (
    id bigserial primary key,
    base_product_id bigint not null references base_products(id) on delete cascade,
    description text not null default '',
    image_ref text not null,
    image_mime text not null default '',
    created_at timestamptz not null default now()
);
`

const QCreatePromptTemplates = `--sql 4ce585c1-cff7-44c1-8ac8-5f362441a3e1
create table if not exists prompt_templates (
    id bigserial primary key,
    name text not null,
    prompt text not null,
    is_default boolean not null default false,
    created_at timestamptz not null default now()
);
`

const QCreateMockupJobs = `--sql a8112dc9-9d9d-447b-b7e7-52821d820634
create table if not exists mockup_jobs (
    id uuid primary key,
    kind text not null check (kind in ('initial', 'modification')),
    base_product_id bigint not null references base_products(id) on delete cascade,
    parent_id uuid references mockup_jobs(id) on delete set null,
    inputs jsonb not null default '{}'::jsonb,
    status text not null check (status in ('pending', 'completed', 'failed')),
    artifact_ref text,
    artifact_mime text not null default '',
    error_message text not null default '',
    simulation_status text not null default 'idle'
        check (simulation_status in ('idle', 'generating', 'completed', 'failed')),
    simulation_refs text[] not null default '{}',
    simulation_error text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QCreateMockupJobsIndexes = `--sql efc0bdca-f938-4180-bd1d-e6002089a526
create index if not exists mockup_jobs_product_created_idx
    on mockup_jobs (base_product_id, created_at desc);
`

const QCreateIntegrationTokens = `--sql 6b82a338-4069-4bb4-82ca-a3fb7a42d0fe
create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
